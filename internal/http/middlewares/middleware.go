package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. La composición queda en manos
// del router (chi r.Use) o del wrapping directo en las rutas.
type Middleware func(http.Handler) http.Handler
