package model

import "errors"

// ErrConfigurationMismatch marks an unknown locale, catalog key or gpu family.
// There is no recovery for it, so it is allowed to end a run.
var ErrConfigurationMismatch = errors.New("configuration mismatch")
