package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuildsAndedTerms(t *testing.T) {
	q := NewQuery().
		Folders().
		NotTrashed().
		AppProperty("app", "ImageApp").
		AppProperty("role", "root")

	assert.Equal(t,
		"mimeType='application/vnd.google-apps.folder' and trashed=false"+
			" and appProperties has { key='app' and value='ImageApp' }"+
			" and appProperties has { key='role' and value='root' }",
		q.String())
}

func TestQueryEscapesValues(t *testing.T) {
	q := NewQuery().InParents("root-1").Name(`O'Brien\Trips`)

	assert.Equal(t, `'root-1' in parents and name='O\'Brien\\Trips'`, q.String())
}

func TestEscapeQueryValue(t *testing.T) {
	assert.Equal(t, `plain`, escapeQueryValue(`plain`))
	assert.Equal(t, `it\'s`, escapeQueryValue(`it's`))
	assert.Equal(t, `a\\b`, escapeQueryValue(`a\b`))
}
