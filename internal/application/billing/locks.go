package billing

import "sync"

// keyedMutex serializa el pipeline por comprobante dentro del proceso. El
// bloqueo de fila (SELECT ... FOR UPDATE) protege entre procesos; este mutex
// evita además que dos goroutines del mismo proceso sellen el mismo documento
// y desperdicien una llamada al PAC.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock adquiere el mutex de la llave y devuelve la función de liberación.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
