package engine

import "errors"

// ErrEmptyContent is returned for a request without content.
var ErrEmptyContent = errors.New("request content is empty")
