package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/elementstates/pkg/client"
)

// SessionChecker checks that the management system answers queries on an
// open session
type SessionChecker struct {
	Client client.Client
	Target string
}

// NewSessionChecker creates a new session checker
func NewSessionChecker(c client.Client, target string) *SessionChecker {
	return &SessionChecker{Client: c, Target: target}
}

// Check lists the agents of the cluster
func (s *SessionChecker) Check(ctx context.Context) Result {
	start := time.Now()

	agents, err := s.Client.ListAgents(ctx)
	if err != nil {
		return result(CheckTypeSession, s.Target, start, err, "")
	}
	return result(CheckTypeSession, s.Target, start, nil, fmt.Sprintf("%d agent responses", len(agents)))
}

// Type returns the check type
func (s *SessionChecker) Type() CheckType {
	return CheckTypeSession
}
