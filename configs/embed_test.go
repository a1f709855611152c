// Copyright 2026 The Variantguard Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package configs

import (
	"testing"

	"github.com/peg/variantguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesBuiltins(t *testing.T) {
	cfg, err := config.Parse(Default)
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def.Version, cfg.Version)
	assert.Equal(t, def.Tools, cfg.Tools)
	assert.Empty(t, cfg.Variants.ExtraTokens)
	assert.Empty(t, cfg.Variants.AllowTokens)
	assert.Nil(t, cfg.Notify)
}
