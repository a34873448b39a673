package daemonapi

import "github.com/google/uuid"

func newDecisionID() string { return uuid.NewString() }
