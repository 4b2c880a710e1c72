package plugin

import "errors"

// ErrNotImplemented is returned by a plugin for a mandatory hook it does
// not serve. The bus treats it like any other hook error: dispatch stops
// and the hub shuts down.
var ErrNotImplemented = errors.New("plugin: hook not implemented")
