package drive

import (
	"fmt"
	"strings"
)

// Query assembles a Drive files.list search expression from AND-ed terms.
// Values are escaped so names containing quotes or backslashes stay literal
// instead of breaking out of the expression.
type Query struct {
	terms []string
}

func NewQuery() *Query {
	return &Query{}
}

func (q *Query) Folders() *Query {
	q.terms = append(q.terms, fmt.Sprintf("mimeType='%s'", folderMimeType))
	return q
}

func (q *Query) NotTrashed() *Query {
	q.terms = append(q.terms, "trashed=false")
	return q
}

func (q *Query) Name(name string) *Query {
	q.terms = append(q.terms, fmt.Sprintf("name='%s'", escapeQueryValue(name)))
	return q
}

func (q *Query) InParents(folderID string) *Query {
	q.terms = append(q.terms, fmt.Sprintf("'%s' in parents", escapeQueryValue(folderID)))
	return q
}

func (q *Query) AppProperty(key, value string) *Query {
	q.terms = append(q.terms, fmt.Sprintf("appProperties has { key='%s' and value='%s' }",
		escapeQueryValue(key), escapeQueryValue(value)))
	return q
}

func (q *Query) String() string {
	return strings.Join(q.terms, " and ")
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQueryValue(s string) string {
	return queryEscaper.Replace(s)
}
