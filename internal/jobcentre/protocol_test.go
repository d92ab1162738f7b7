package jobcentre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestPut(t *testing.T) {
	r, err := parseRequest([]byte(`{"request":"put","queue":"a","pri":10,"job":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, reqPut, r.typ)
	assert.Equal(t, "a", r.queue)
	assert.EqualValues(t, 10, r.priority)
	assert.JSONEq(t, `{"x":1}`, string(r.payload))
}

func TestParseRequestPutMissingQueueErrors(t *testing.T) {
	_, err := parseRequest([]byte(`{"request":"put","pri":1,"job":{}}`))
	assert.Error(t, err)
}

func TestParseRequestGet(t *testing.T) {
	r, err := parseRequest([]byte(`{"request":"get","queues":["a","b"],"wait":true}`))
	require.NoError(t, err)
	assert.Equal(t, reqGet, r.typ)
	assert.Equal(t, []string{"a", "b"}, r.queues)
	assert.True(t, r.wait)
}

func TestParseRequestGetMissingQueuesErrors(t *testing.T) {
	_, err := parseRequest([]byte(`{"request":"get","wait":false}`))
	assert.Error(t, err)
}

func TestParseRequestDelete(t *testing.T) {
	r, err := parseRequest([]byte(`{"request":"delete","id":5}`))
	require.NoError(t, err)
	assert.Equal(t, reqDelete, r.typ)
	assert.EqualValues(t, 5, r.id)
}

func TestParseRequestUnrecognizedType(t *testing.T) {
	_, err := parseRequest([]byte(`{"request":"wat"}`))
	assert.Error(t, err)
}

func TestRespOKIncludesJobVerbatim(t *testing.T) {
	out := respOK(2, 20, "a", []byte(`{"x":2}`))
	assert.Contains(t, out, `"job":{"x":2}`)
	assert.Contains(t, out, `"id":2`)
	assert.Contains(t, out, `"queue":"a"`)
}
