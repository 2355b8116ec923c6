package health

import (
	"context"
	"sort"
	"time"
)

const defaultCheckTimeout = 5 * time.Second

// Checker checks one dependency.
type Checker func(ctx context.Context) error

// Service encapsulates health-related checks. Deep checks are expensive and
// run only when asked for.
type Service struct {
	checks     map[string]Checker
	deepChecks map[string]Checker
	timeout    time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{
		checks:     map[string]Checker{},
		deepChecks: map[string]Checker{},
		timeout:    defaultCheckTimeout,
	}
}

// Register adds a check that runs on every status request.
func (s *Service) Register(name string, check Checker) {
	if check != nil {
		s.checks[name] = check
	}
}

// RegisterDeep adds a check that runs only for deep status requests.
func (s *Service) RegisterDeep(name string, check Checker) {
	if check != nil {
		s.deepChecks[name] = check
	}
}

// Report is the health payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status runs the registered checks, and the deep ones when deep is set.
func (s *Service) Status(ctx context.Context, deep bool) Report {
	r := Report{OK: true}
	run := func(checks map[string]Checker) {
		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			err := checks[name](cctx)
			cancel()
			if r.Checks == nil {
				r.Checks = map[string]string{}
			}
			if err != nil {
				r.OK = false
				r.Checks[name] = err.Error()
				continue
			}
			r.Checks[name] = "ok"
		}
	}
	run(s.checks)
	if deep {
		run(s.deepChecks)
	}
	return r
}
