//go:build !windows

package codegen

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestQBECompilesWithLibqbe(t *testing.T) {
	prog, cfg := generate(t, `
(program
  (func fact ((param n int))
    (block
      (decl r int)
      (if (<= (id n) (int 1)) (block (return (int 1))))
      (call r fact ((- (id n) (int 1))))
      (return (* (id n) (id r))))))`, "")
	out, err := NewQBEBackend().Generate(prog, qbeConfig(t, cfg))
	be.Err(t, err, nil)
	be.True(t, strings.Contains(out.String(), "fact"))
}
