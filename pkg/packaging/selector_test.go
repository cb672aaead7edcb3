package packaging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	t.Parallel()

	ns := Namespace{"win": true, "win64": true, "linux": false, "x86_64": true}

	var tests = []struct {
		expr string
		out  bool
	}{
		{expr: "win", out: true},
		{expr: "linux", out: false},
		{expr: "not linux", out: true},
		{expr: "not not win", out: true},
		{expr: "win and linux", out: false},
		{expr: "win or linux", out: true},
		{expr: "linux or win and x86_64", out: true},
		{expr: "(linux or win) and not x86_64", out: false},
		{expr: "  win64  ", out: true},
		{expr: "(win)", out: true},
	}

	for _, tt := range tests {
		actual, err := ns.Eval(tt.expr)
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.out, actual, tt.expr)
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	ns := Namespace{"win": true}

	for _, expr := range []string{"", "beos", "win and", "(win", "win)", "and win", "win win", "not"} {
		_, err := ns.Eval(expr)
		require.Error(t, err, expr)
	}
}
