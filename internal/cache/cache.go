// Package cache define una abstracción mínima de cache de bytes con TTL.
//
// Backends:
//   - memory (in-process, go-cache): desarrollo y tests.
//   - redis: producción.
//
// El engine la usa para vistas read-mostly (lookups de application, JWKS
// serializado), nunca como store de verdad: codes y sesiones viven en los
// repositorios, que son los que garantizan atomicidad.
package cache

import "time"

// Cache es un KV de bytes con TTL por entrada.
type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
