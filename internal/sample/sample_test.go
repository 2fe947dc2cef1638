package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
)

func TestCubeIsClosedAndOutward(t *testing.T) {
	v, tris := Cube(10, 20, 30)
	require.Len(t, v, 8)
	require.Len(t, tris, 12)

	// Every edge is shared by exactly two triangles in opposite directions.
	edges := map[[2]uint32]int{}
	for _, tri := range tris {
		for i := 0; i < 3; i++ {
			edges[[2]uint32{tri[i], tri[(i+1)%3]}]++
		}
	}
	for e, n := range edges {
		assert.Equal(t, 1, n, "directed edge %v", e)
		assert.Equal(t, 1, edges[[2]uint32{e[1], e[0]}], "reverse of edge %v", e)
	}

	// Normals point away from the center.
	center := math.Vec3{X: 5, Y: 10, Z: 15}
	for i, tri := range tris {
		n := math.TriangleNormal(v[tri[0]], v[tri[1]], v[tri[2]])
		assert.Greater(t, n.Dot(v[tri[0]].Sub(center)), float32(0), "triangle %d faces inward", i)
	}
}

func TestComponentsScene(t *testing.T) {
	m := model.New()
	defer m.Close()

	box, group, err := ComponentsScene(m)
	require.NoError(t, err)

	name, _ := box.Name()
	assert.Equal(t, "Box", name)
	comps, err := group.Components()
	require.NoError(t, err)
	require.Len(t, comps, 3)
	assert.Equal(t, math.Vec3{X: 40, Y: 60, Z: 80}, comps[1].Transform.Translation())

	items, err := m.BuildItems()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, group.ID(), items[0].ObjectID)
	assert.True(t, items[0].Transform.IsIdentity())
	assert.Equal(t, box.ID(), items[2].ObjectID)
	assert.NoError(t, m.Validate())
}

func TestBuild(t *testing.T) {
	for _, scene := range Scenes {
		t.Run(scene, func(t *testing.T) {
			m := model.New()
			defer m.Close()
			require.NoError(t, Build(m, scene))
			items, _ := m.BuildItems()
			assert.NotEmpty(t, items)
		})
	}

	assert.Error(t, Build(model.New(), "teapot"))
}
