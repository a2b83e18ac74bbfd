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

package sequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/store"
)

func TestGetCreatesAbsentSequence(t *testing.T) {
	s := New(store.NewMemoryStoreForTest())
	seq, err := s.Get(context.Background(), "elements")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq.Sequence)
	assert.Equal(t, "", seq.Data)
}

func TestIncIsMonotonicAndSetsData(t *testing.T) {
	s := New(store.NewMemoryStoreForTest())
	ctx := context.Background()

	data1 := "elem-1"
	seq, err := s.Inc(ctx, "elements", &data1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq.Sequence)
	assert.Equal(t, "elem-1", seq.Data)

	data2 := "elem-2"
	seq, err = s.Inc(ctx, "elements", &data2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq.Sequence)
	assert.Equal(t, "elem-2", seq.Data)
}

func TestSetUnsetsDataOnEmptyString(t *testing.T) {
	s := New(store.NewMemoryStoreForTest())
	ctx := context.Background()

	data := "something"
	_, err := s.Set(ctx, "k", nil, &data)
	require.NoError(t, err)

	empty := ""
	seq, err := s.Set(ctx, "k", nil, &empty)
	require.NoError(t, err)
	assert.Equal(t, "", seq.Data)
}
