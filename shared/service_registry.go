package shared

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var registryLog = logrus.WithField("prefix", "shared")

// ServiceRegistry tracks the node's long-running Services by their
// concrete type, so a node can register each service once at
// construction and later fetch it back by type (e.g. one service
// wiring itself to another's feed) without every constructor needing
// to thread every dependency through its argument list.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[reflect.Type]Service
	order    []reflect.Type // registration order, for deterministic Start/Stop
}

// NewServiceRegistry returns an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[reflect.Type]Service)}
}

// RegisterService stores service, keyed by its concrete type. Returns
// an error if a service of that exact type is already registered.
func (r *ServiceRegistry) RegisterService(service Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := reflect.TypeOf(service)
	if _, exists := r.services[kind]; exists {
		return fmt.Errorf("service already registered: %s", kind)
	}
	r.services[kind] = service
	r.order = append(r.order, kind)
	return nil
}

// FetchService populates *service (a pointer to an interface or
// concrete service type) with the registered instance matching that
// type. dest must be a non-nil pointer.
func (r *ServiceRegistry) FetchService(dest interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}
	elemType := destVal.Elem().Type()

	for kind, service := range r.services {
		if kind.AssignableTo(elemType) {
			destVal.Elem().Set(reflect.ValueOf(service))
			return nil
		}
	}
	return fmt.Errorf("unknown service type %s", elemType)
}

// StartAll starts every registered service in registration order.
func (r *ServiceRegistry) StartAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range r.order {
		registryLog.WithField("service", kind).Debug("Starting service")
		r.services[kind].Start()
	}
}

// StopAll stops every registered service in reverse registration
// order, logging (but not aborting on) any error so every service
// gets a chance to shut down.
func (r *ServiceRegistry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		kind := r.order[i]
		if err := r.services[kind].Stop(); err != nil {
			registryLog.WithField("service", kind).WithError(err).Error("Failed to stop service")
		}
	}
}

// Statuses returns each registered service's current Status() error,
// keyed by service type, for a health-check endpoint to render.
func (r *ServiceRegistry) Statuses() map[reflect.Type]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[reflect.Type]error, len(r.services))
	for kind, service := range r.services {
		out[kind] = service.Status()
	}
	return out
}
