// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/result"
)

type transferDTO struct {
	To     string `json:"to"`
	Volume string `json:"volume"`
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	c := cache.NewMemoryCacheForTest()
	d := New(c, time.Minute)

	var seen transferDTO
	d.Register("Transfer", "POST", func(ctx context.Context, requestData json.RawMessage) (result.Response, error) {
		require.NoError(t, json.Unmarshal(requestData, &seen))
		return result.Ok(map[string]string{"to": seen.To}), nil
	})

	raw, err := json.Marshal(Envelope{
		RequestID:        "req-1",
		RequestClassName: "Transfer",
		Method:           "POST",
		RequestData:      mustJSON(t, transferDTO{To: "bob", Volume: "100"}),
	})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), raw))
	assert.Equal(t, "bob", seen.To)

	stored, ok, err := c.Get(context.Background(), "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	var resp Envelope
	require.NoError(t, json.Unmarshal([]byte(stored), &resp))
	assert.Equal(t, result.OK, resp.Status)
}

func TestDispatchUnknownRouteReturnsInternal(t *testing.T) {
	c := cache.NewMemoryCacheForTest()
	d := New(c, time.Minute)

	raw, err := json.Marshal(Envelope{RequestID: "req-2", RequestClassName: "DoesNotExist", Method: "POST"})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), raw))

	stored, ok, err := c.Get(context.Background(), "req-2")
	require.NoError(t, err)
	require.True(t, ok)

	var resp Envelope
	require.NoError(t, json.Unmarshal([]byte(stored), &resp))
	assert.Equal(t, result.INTERNAL, resp.Status)
}

func TestDispatchHandlerErrorBecomesInternal(t *testing.T) {
	c := cache.NewMemoryCacheForTest()
	d := New(c, time.Minute)
	d.Register("Transfer", "POST", func(ctx context.Context, requestData json.RawMessage) (result.Response, error) {
		return result.Response{}, errors.New("store unreachable")
	})

	raw, err := json.Marshal(Envelope{RequestID: "req-3", RequestClassName: "Transfer", Method: "POST"})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), raw))

	stored, ok, err := c.Get(context.Background(), "req-3")
	require.NoError(t, err)
	require.True(t, ok)

	var resp Envelope
	require.NoError(t, json.Unmarshal([]byte(stored), &resp))
	assert.Equal(t, result.INTERNAL, resp.Status)
}

func TestDispatchMalformedEnvelopeReturnsError(t *testing.T) {
	c := cache.NewMemoryCacheForTest()
	d := New(c, time.Minute)

	err := d.Dispatch(context.Background(), []byte("not json"))
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
