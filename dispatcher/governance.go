package dispatcher

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/routeforge/dispatch-core/codec"
)

// Pause disables Dispatch while leaving every governance operation
// available. Role: EMERGENCY. Permitted even while already paused
// (idempotent) but not while frozen.
func (d *Dispatcher) Pause(caller codec.Address) error {
	return d.setPaused(caller, true)
}

// Unpause re-enables Dispatch. Role: EMERGENCY (see DESIGN.md for the
// reasoning behind assigning unpause authority to this role).
func (d *Dispatcher) Unpause(caller codec.Address) error {
	return d.setPaused(caller, false)
}

func (d *Dispatcher) setPaused(caller codec.Address, paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleEmergency, caller); err != nil {
		return err
	}

	d.st.paused = paused
	log.WithFields(logrus.Fields{"paused": paused, "by": caller.String()}).Warn("Pause flag changed")
	d.emit(KindPausedSet, PausedSetEvent{Paused: paused, By: caller})
	return nil
}

// Freeze is the irreversible terminal state: once set, every
// state-changing operation (including Pause/Unpause and further
// governance) is rejected. Role: ADMIN.
func (d *Dispatcher) Freeze(caller codec.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleAdmin, caller); err != nil {
		return err
	}

	d.st.frozen = true
	log.WithField("by", caller.String()).Warn("Dispatcher frozen")
	d.emit(KindFrozen, FrozenEvent{By: caller})
	return nil
}

// GrantRole adds addr to role's membership. Role: ADMIN.
func (d *Dispatcher) GrantRole(caller codec.Address, role Role, addr codec.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if !validRole(role) {
		return errors.Errorf("dispatcher: unknown role %q", role)
	}

	d.st.roles[role][addr] = struct{}{}
	log.WithFields(logrus.Fields{"role": role, "addr": addr.String(), "by": caller.String()}).Info("Role granted")
	d.emit(KindRoleGranted, RoleGrantedEvent{Role: role, Addr: addr, By: caller})
	return nil
}

// RevokeRole removes addr from role's membership.  Role: ADMIN.
func (d *Dispatcher) RevokeRole(caller codec.Address, role Role, addr codec.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if !validRole(role) {
		return errors.Errorf("dispatcher: unknown role %q", role)
	}

	delete(d.st.roles[role], addr)
	log.WithFields(logrus.Fields{"role": role, "addr": addr.String(), "by": caller.String()}).Info("Role revoked")
	d.emit(KindRoleRevoked, RoleRevokedEvent{Role: role, Addr: addr, By: caller})
	return nil
}

// SetEtaGrace updates the activation grace window. Role: ADMIN.
func (d *Dispatcher) SetEtaGrace(caller codec.Address, seconds uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleAdmin, caller); err != nil {
		return err
	}

	d.st.etaGrace = seconds
	log.WithField("seconds", seconds).Info("EtaGrace updated")
	d.emit(KindEtaGraceSet, EtaGraceSetEvent{New: seconds})
	return nil
}

// SetMaxBatchSize updates the per-call apply_routes batch cap. Role:
// ADMIN.
func (d *Dispatcher) SetMaxBatchSize(caller codec.Address, n uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleAdmin, caller); err != nil {
		return err
	}

	d.st.maxBatchSize = n
	log.WithField("max_batch_size", n).Info("MaxBatchSize updated")
	d.emit(KindMaxBatchSizeSet, MaxBatchSizeSetEvent{New: n})
	return nil
}
