package expressions

import "sync"

// compileCache memoises compiled programs by expression source. Failed
// compilations are not cached.
type compileCache[P any] struct {
	mu       sync.Mutex
	programs map[string]P
	compile  func(src string) (P, error)
}

func newCompileCache[P any](compile func(string) (P, error)) *compileCache[P] {
	return &compileCache[P]{programs: make(map[string]P), compile: compile}
}

func (c *compileCache[P]) get(src string) (P, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[src]; ok {
		return p, nil
	}
	p, err := c.compile(src)
	if err != nil {
		return p, err
	}
	c.programs[src] = p
	return p, nil
}

func (c *compileCache[P]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}
