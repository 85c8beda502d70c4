package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_MarshalFieldOrder(t *testing.T) {
	n := Node{
		ExternalID:      "E",
		External:        "cloud",
		ByteLength:      Int64(3),
		ContentType:     "text/html",
		HasComments:     Bool(false),
		HasNotes:        Bool(true),
		TodoDate:        "2024-01-01",
		Details:         "d",
		TodoState:       Todo(TodoStateWaiting),
		ContentModified: Int64(12),
		DateModified:    Int64(11),
		DateAdded:       Int64(10),
		Tags:            "a,b",
		Type:            TypeArchive,
		ParentID:        CloudShelfUUID,
		Icon:            "icon",
		Pos:             Int64(0),
		URI:             "https://x",
		UUID:            "ABC",
		Name:            "X",
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	text := string(data)
	last := -1
	for _, key := range NodeFieldOrder {
		idx := strings.Index(text, `"`+key+`":`)
		require.NotEqual(t, -1, idx, "missing key %s", key)
		assert.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
}

func TestNode_OmitsAbsentFields(t *testing.T) {
	n := Node{UUID: "ABC", Type: TypeBookmark}

	data, err := json.Marshal(&n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"ABC","type":"bookmark"}`, string(data))
	assert.NotContains(t, string(data), "null")
}

func TestNode_UnknownFieldsRoundTrip(t *testing.T) {
	in := `{"name":"X","uuid":"ABC","type":"bookmark","size":42,"x_meta":{"k":[1,2]}}`

	var n Node
	require.NoError(t, json.Unmarshal([]byte(in), &n))
	require.Len(t, n.Extra, 2)
	assert.JSONEq(t, `42`, string(n.Extra["size"]))

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.True(t, strings.HasPrefix(string(out), `{"name":"X","uuid":"ABC","type":"bookmark",`))
}

func TestMarshal_ExtraCannotShadowKnownFields(t *testing.T) {
	n := Node{
		Name: "X",
		UUID: "ABC",
		Extra: map[string]json.RawMessage{
			"name": json.RawMessage(`"shadow"`),
			"uuid": json.RawMessage(`"DUP"`),
			"size": json.RawMessage(`1`),
		},
	}
	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"X","uuid":"ABC","size":1}`, string(out))

	m := Meta{Cloud: "c", Version: 1, Timestamp: 2, Extra: map[string]json.RawMessage{"version": json.RawMessage(`9`)}}
	out, err = json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"cloud":"c","version":1,"timestamp":2}`, string(out))

	c := NodeContainer{Extra: map[string]json.RawMessage{"nodes": json.RawMessage(`null`), "sync": json.RawMessage(`{}`)}}
	out, err = json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[],"sync":{}}`, string(out))
}

func TestNode_LegacyIntegerType(t *testing.T) {
	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"A","type":2}`), &n))
	assert.Equal(t, TypeGroup, n.Type)

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"A","type":"folder"}`, string(out))

	err = json.Unmarshal([]byte(`{"uuid":"A","type":99}`), &n)
	assert.Error(t, err)
}

func TestNode_ZeroPositionIsKept(t *testing.T) {
	n := Node{UUID: "A", Pos: Int64(0)}
	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"pos":0`)
	assert.Equal(t, int64(0), n.Position())

	assert.Equal(t, DefaultPosition, (&Node{}).Position())
}

func TestNode_Clone(t *testing.T) {
	n := &Node{UUID: "A", Pos: Int64(5), HasNotes: Bool(true), Extra: map[string]json.RawMessage{"k": json.RawMessage(`1`)}}
	c := n.Clone()

	*c.Pos = 6
	*c.HasNotes = false
	c.Extra["k"] = json.RawMessage(`2`)

	assert.Equal(t, int64(5), *n.Pos)
	assert.True(t, n.NotesAttached())
	assert.Equal(t, `1`, string(n.Extra["k"]))
}

func TestNode_Times(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	n := &Node{DateAdded: Int64(now.UnixMilli())}
	n.Touch(now.Add(time.Second))

	assert.True(t, n.Added().Equal(now))
	assert.True(t, n.Modified().Equal(now.Add(time.Second)))
	assert.True(t, (&Node{}).Added().IsZero())
}

func TestParseTodoState(t *testing.T) {
	tests := []struct {
		in      string
		want    TodoState
		wantErr bool
	}{
		{"TODO", TodoStateTodo, false},
		{"waiting", TodoStateWaiting, false},
		{" Postponed ", TodoStatePostponed, false},
		{"DONE", TodoStateDone, false},
		{"CANCELLED", TodoStateCancelled, false},
		{"LATER", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTodoState(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.ToUpper(strings.TrimSpace(tt.in)), got.String())
		})
	}
}

func TestNodeType_Valid(t *testing.T) {
	assert.True(t, TypeNotes.Valid())
	assert.False(t, NodeType("widget").Valid())
	assert.True(t, TypeGroup.IsContainer())
	assert.True(t, TypeShelf.IsContainer())
	assert.False(t, TypeArchive.IsContainer())
}

func TestMeta_RoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	m := NewMeta(now)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"cloud":"JSON Scrapbook","version":1,"timestamp":1700000000000}`, string(data))

	var back Meta
	require.NoError(t, json.Unmarshal([]byte(`{"cloud":"c","version":2,"timestamp":5,"entities":3}`), &back))
	assert.Equal(t, int64(2), back.Version)
	assert.JSONEq(t, `3`, string(back.Extra["entities"]))

	out, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, `{"cloud":"c","version":2,"timestamp":5,"entities":3}`, string(out))
}

func TestNodeContainer_EmptyNodes(t *testing.T) {
	data, err := json.Marshal(NodeContainer{})
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(data))
}

func TestNewUUID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewUUID()
		require.Len(t, id, 32)
		assert.Equal(t, strings.ToUpper(id), id)
		assert.NotContains(t, id, "-")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
