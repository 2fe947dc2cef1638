package math

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = float32(1e-4)

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[4] != 1 || m[8] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[9] != 0 || m[10] != 0 || m[11] != 0 {
		t.Error("Identity translation should be 0")
	}
	if !m.IsIdentity() {
		t.Error("IsIdentity() = false for Identity()")
	}
}

func TestTranslation(t *testing.T) {
	m := Translation(40, 60, 80)
	got := m.Apply(Vec3{1, 2, 3})
	want := Vec3{41, 62, 83}
	if got != want {
		t.Errorf("Apply: got %v, want %v", got, want)
	}
	if m.Translation() != (Vec3{40, 60, 80}) {
		t.Errorf("Translation() = %v", m.Translation())
	}
}

func TestComposeOrder(t *testing.T) {
	// Scale first, then translate: (1,0,0) -> (2,0,0) -> (12,0,0).
	st := Scaling(2, 2, 2).Compose(Translation(10, 0, 0))
	assert.Equal(t, Vec3{12, 0, 0}, st.Apply(Vec3{1, 0, 0}))

	// Translate first, then scale: (1,0,0) -> (11,0,0) -> (22,0,0).
	ts := Translation(10, 0, 0).Compose(Scaling(2, 2, 2))
	assert.Equal(t, Vec3{22, 0, 0}, ts.Apply(Vec3{1, 0, 0}))
}

func TestComposeMatchesSequentialApply(t *testing.T) {
	a := RotationAxis(Vec3{0, 0, 1}, 0.7).Compose(Translation(1, 2, 3))
	b := Scaling(1, 2, 3).Compose(Translation(-4, 5, 0.5))
	p := Vec3{3, -1, 2}

	want := b.Apply(a.Apply(p))
	got := a.Compose(b).Apply(p)
	assert.InDelta(t, want.X, got.X, float64(tol))
	assert.InDelta(t, want.Y, got.Y, float64(tol))
	assert.InDelta(t, want.Z, got.Z, float64(tol))
}

func TestComposeIdentityIsNeutral(t *testing.T) {
	m := RotationAxis(Vec3{1, 1, 0}, 1.1).Compose(Translation(5, 6, 7))
	assert.True(t, m.Compose(Identity()).ApproxEqual(m, tol))
	assert.True(t, Identity().Compose(m).ApproxEqual(m, tol))
}

func TestComposeAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := func() Transform {
		var m Transform
		for i := range m {
			m[i] = rng.Float32()*4 - 2
		}
		return m
	}

	for i := 0; i < 100; i++ {
		a, b, c := random(), random(), random()
		left := a.Compose(b).Compose(c)
		right := a.Compose(b.Compose(c))
		if !left.ApproxEqual(right, 1e-4) {
			t.Fatalf("iteration %d: (AB)C = %v, A(BC) = %v", i, left, right)
		}
	}
}

func TestRotationAxis(t *testing.T) {
	m := RotationAxis(Vec3{0, 0, 1}, float32(3.14159265/2))
	got := m.Apply(Vec3{1, 0, 0})
	assert.InDelta(t, 0, got.X, 1e-5)
	assert.InDelta(t, 1, got.Y, 1e-5)
	assert.InDelta(t, 0, got.Z, 1e-5)
}

func TestDeterminant(t *testing.T) {
	tests := []struct {
		name string
		m    Transform
		want float32
	}{
		{"identity", Identity(), 1},
		{"translation", Translation(3, 4, 5), 1},
		{"scale", Scaling(2, 3, 4), 24},
		{"mirror", Scaling(-1, 1, 1), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Determinant(); got != tt.want {
				t.Errorf("Determinant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInverse(t *testing.T) {
	m := RotationAxis(Vec3{1, 2, 3}, 0.4).Compose(Scaling(2, 1, 0.5)).Compose(Translation(9, -3, 2))
	inv, ok := m.Inverse()
	require.True(t, ok)
	assert.True(t, m.Compose(inv).ApproxEqual(Identity(), tol), "M * M^-1 = %v", m.Compose(inv))

	_, ok = Scaling(0, 1, 1).Inverse()
	assert.False(t, ok, "singular transform should not invert")
}

func TestTransformStringRoundTrip(t *testing.T) {
	m := Translation(120, 30, 70).Compose(Scaling(0.5, 1.25, -3))
	s := m.String()
	parsed, err := ParseTransform(s)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
	assert.Equal(t, "1 0 0 0 1 0 0 0 1 40 60 80", Translation(40, 60, 80).String())
}

func TestParseTransformErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too few", "1 0 0 0 1 0 0 0 1"},
		{"too many", "1 0 0 0 1 0 0 0 1 0 0 0 0"},
		{"not a number", "1 0 0 0 1 0 0 0 1 x 0 0"},
		{"nan", "1 0 0 0 1 0 0 0 1 NaN 0 0"},
		{"overflow", "1 0 0 0 1 0 0 0 1 1e40 0 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransform(tt.input)
			if !errors.Is(err, ErrInvalidTransform) {
				t.Errorf("ParseTransform(%q) error = %v, want ErrInvalidTransform", tt.input, err)
			}
		})
	}
}
