package source

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/errors"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.tpl":           {Data: []byte("<h1>{{block=header}}</h1>")},
		"header.tpl":          {Data: []byte("Welcome")},
		"users/list.tpl":      {Data: []byte("{{foreach users}}{{end foreach}}")},
		"partials/nav.tpl":    {Data: []byte("<nav></nav>")},
		".hidden/skip.tpl":    {Data: []byte("x")},
		"src/javascript/a.js": {Data: []byte("var a;")},
	}
}

func TestDir_Page(t *testing.T) {
	d := NewFS(testFS(), ".tpl")

	data, err := d.Page(context.Background(), "index.tpl")
	require.NoError(t, err)
	assert.Equal(t, "<h1>{{block=header}}</h1>", data)

	data, err = d.Page(context.Background(), "users/list.tpl")
	require.NoError(t, err)
	assert.Contains(t, data, "foreach users")
}

func TestDir_PageNotFound(t *testing.T) {
	d := NewFS(testFS(), ".tpl")

	_, err := d.Page(context.Background(), "missing.tpl")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = d.Page(context.Background(), "../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDir_Fragment(t *testing.T) {
	d := NewFS(testFS(), ".tpl")

	data, err := d.Fragment(context.Background(), "header")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", data)

	data, err = d.Fragment(context.Background(), "partials/nav")
	require.NoError(t, err)
	assert.Equal(t, "<nav></nav>", data)

	_, err = d.Fragment(context.Background(), "footer")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFragmentNotFound)
}

func TestDir_CanceledContext(t *testing.T) {
	d := NewFS(testFS(), ".tpl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Page(ctx, "index.tpl")
	assert.Error(t, err)
}

func TestDir_Exists(t *testing.T) {
	d := NewFS(testFS(), ".tpl")
	assert.True(t, d.Exists("index.tpl"))
	assert.True(t, d.Exists("/users/list.tpl"))
	assert.False(t, d.Exists("users"))
	assert.False(t, d.Exists("nope.tpl"))
}

func TestDir_FragmentName(t *testing.T) {
	d := NewFS(testFS(), ".tpl")

	name, ok := d.FragmentName("partials/nav.tpl")
	assert.True(t, ok)
	assert.Equal(t, "partials/nav", name)

	_, ok = d.FragmentName("src/javascript/a.js")
	assert.False(t, ok)
}

func TestDir_Pages(t *testing.T) {
	d := NewFS(testFS(), ".tpl")

	pages, err := d.Pages()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.tpl", "header.tpl", "users/list.tpl", "partials/nav.tpl"}, pages)
}
