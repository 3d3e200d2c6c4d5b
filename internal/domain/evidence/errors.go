package evidence

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrProviderFailure  = errors.New("analysis provider failure")
	ErrStorageIO        = errors.New("storage io failure")
	ErrAnalysisInFlight = errors.New("analysis already in flight")
)
