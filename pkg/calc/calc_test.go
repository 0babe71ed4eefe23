package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"25 * 11", 275},
		{"15 - (5 + 2 + 3)", 5},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"-3 + 5", 2},
		{"--3", 3},
		{"+7", 7},
		{"2 ** 10", 1024},
		{"2 ** 3 ** 2", 512},
		{"-2 ** 2", -4},
		{"2 ** -1", 0.5},
		{".5 * 4", 2},
		{"1.5e3 + 1", 1501},
		{"6.6743e-11 * 2", 1.33486e-10},
		{"  ( ( 4 ) ) ", 4},
		{"100 - 10 - 10", 80},
		{"64 / 4 / 2", 8},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr error
	}{
		{"", ErrEmptyExpression},
		{"   ", ErrEmptyExpression},
		{"10/0", ErrDivisionByZero},
		{"1 / (2 - 2)", ErrDivisionByZero},
		{"(-8) ** 0.5", ErrNotFinite},
		{"10 ** 400", ErrNotFinite},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Eval(tt.expr)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEval_SyntaxErrors(t *testing.T) {
	for _, expr := range []string{
		"not an expression",
		"2 +",
		"(1 + 2",
		"1 + 2)",
		"3 4",
		"2 ^ 3",
		"1e",
		".",
		"alert(1)",
		"2 *** 3",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Eval(expr)
			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{275, "275"},
		{2.5, "2.5"},
		{-4, "-4"},
		{0, "0"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{123456789012, "123456789012"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}
