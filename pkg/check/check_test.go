package check

import (
	"errors"
	"testing"

	"github.com/loykin/apiverify/pkg/call"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func mr(body string, headers ...call.Header) *call.ModelResponse[user] {
	return call.NewModelResponse(&call.Response{
		StatusCode:  200,
		ContentType: "application/json",
		Headers:     headers,
		Body:        []byte(body),
	}, user{ID: 42, Name: "Ana"})
}

func requireFailed(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, call.ErrAssertion)
}

func TestStatus(t *testing.T) {
	r := mr(`{}`)
	require.NoError(t, Status[user](200, 201)(200, r, r.Model()))
	requireFailed(t, Status[user](201)(200, r, r.Model()))
	require.NoError(t, Status[user]()(204, r, r.Model()))
	requireFailed(t, Status[user]()(500, r, r.Model()))
}

func TestJSONPath(t *testing.T) {
	r := mr(`{"id":42,"name":"Ana","tags":["a","b"],"active":true}`)
	require.NoError(t, JSONPath[user]("id", 42)(200, r, r.Model()))
	require.NoError(t, JSONPath[user]("$.id", "42")(200, r, r.Model()))
	require.NoError(t, JSONPath[user]("$.tags[1]", "b")(200, r, r.Model()))
	require.NoError(t, JSONPath[user]("active", true)(200, r, r.Model()))

	err := JSONPath[user]("name", "Bo")(200, r, r.Model())
	requireFailed(t, err)
	require.Contains(t, err.Error(), `expected Bo, got Ana`)

	requireFailed(t, JSONPath[user]("missing", 1)(200, r, r.Model()))
	require.NoError(t, JSONPathExists[user]("tags.0")(200, r, r.Model()))
	requireFailed(t, JSONPathExists[user]("nope")(200, r, r.Model()))
}

func TestHeader(t *testing.T) {
	r := mr(`{}`, call.Header{Name: "X-Id", Value: "1"}, call.Header{Name: "X-Id", Value: "2"})
	require.NoError(t, Header[user]("x-id", "")(200, r, r.Model()))
	require.NoError(t, Header[user]("X-Id", "2")(200, r, r.Model()))
	requireFailed(t, Header[user]("X-Id", "3")(200, r, r.Model()))
	requireFailed(t, Header[user]("X-Missing", "")(200, r, r.Model()))
}

func TestSchema(t *testing.T) {
	schema := `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
	}`
	a, err := Schema[user](schema)
	require.NoError(t, err)

	r := mr(`{"id":42,"name":"Ana"}`)
	require.NoError(t, a(200, r, r.Model()))

	bad := mr(`{"id":"oops"}`)
	err = a(200, bad, bad.Model())
	requireFailed(t, err)
	require.Contains(t, err.Error(), "schema:")

	notJSON := mr(`<html>`)
	requireFailed(t, a(200, notJSON, notJSON.Model()))

	_, err = Schema[user](`{"type": 12}`)
	require.Error(t, err)
	require.Panics(t, func() { MustSchema[user](`not json`) })
}

func TestAll(t *testing.T) {
	r := mr(`{"id":42}`)
	err := All[user](Status[user](201), JSONPath[user]("id", 1), nil)(200, r, r.Model())
	requireFailed(t, err)
	require.Contains(t, err.Error(), "status 200")
	require.Contains(t, err.Error(), `json path "id"`)

	boom := errors.New("boom")
	err = All[user](Status[user](201), func(int, *call.ModelResponse[user], user) error { return boom })(200, r, r.Model())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, call.ErrAssertion)

	require.NoError(t, All[user]()(200, r, r.Model()))
}

func TestExpect(t *testing.T) {
	r := mr(`{}`)
	ok := Expect(func(a *assert.Assertions, status int, _ *call.ModelResponse[user], u user) {
		a.Equal(200, status)
		a.Equal("Ana", u.Name)
	})
	require.NoError(t, ok(200, r, r.Model()))

	failing := Expect(func(a *assert.Assertions, _ int, _ *call.ModelResponse[user], u user) {
		a.Equal(7, u.ID, "id")
		a.Empty(u.Name)
	})
	err := failing(200, r, r.Model())
	requireFailed(t, err)
	require.Contains(t, err.Error(), "Not equal")
	require.Contains(t, err.Error(), "Should be empty")
}
