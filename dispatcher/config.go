package dispatcher

import "github.com/routeforge/dispatch-core/codec"

// Default governance parameters for eta_grace and max_batch_size. The
// activation_delay default (3600s) is set directly in DefaultConfig.
const (
	DefaultEtaGrace      uint32 = 60
	DefaultMaxBatchSize  uint32 = 50
)

// Config seeds a new Dispatcher's governance parameters and initial
// role membership. ActivationDelay is fixed at construction; EtaGrace
// and MaxBatchSize are mutable afterward via ADMIN-gated setters. All
// three are taken as given, including zero (a zero ActivationDelay or
// EtaGrace is a legitimate "no timelock" configuration); callers who
// want the enumerated defaults should start from DefaultConfig.
type Config struct {
	ActivationDelaySeconds uint64
	EtaGraceSeconds        uint32
	MaxBatchSize           uint32
	Roles                  RoleConfig
}

// DefaultConfig returns a Config carrying the enumerated defaults
// (ActivationDelay 3600s, EtaGrace 60s, MaxBatchSize 50) with the given
// initial ADMIN and EMERGENCY role membership.
func DefaultConfig(admin, guardian codec.Address) Config {
	return Config{
		ActivationDelaySeconds: 3600,
		EtaGraceSeconds:        DefaultEtaGrace,
		MaxBatchSize:           DefaultMaxBatchSize,
		Roles: RoleConfig{
			Admin:     []codec.Address{admin},
			Emergency: []codec.Address{guardian},
		},
	}
}
