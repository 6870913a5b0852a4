package server

import "net/http"

// Registrar is a common interface for everything that mounts routes on
// the gateway mux.
type Registrar interface {
	Register(mux *http.ServeMux)
}
