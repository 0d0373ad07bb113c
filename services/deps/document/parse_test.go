// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePattern = `<?xml version="1.0" encoding="UTF-8"?>
<pattern>
    <!--Pattern created with Seamly2D-->
    <version>0.6.8</version>
    <unit>cm</unit>
    <increments>
        <increment name="#EaseRatioBust" formula="1.05" description="ease"/>
    </increments>
    <draftBlock name="Front">
        <calculation>
            <point type="single" id="1" name="A" x="0" y="0" mx="0.1" my="0.2"/>
        </calculation>
    </draftBlock>
</pattern>`

func TestParse_BuildsTree(t *testing.T) {
	root, err := Parse(strings.NewReader(samplePattern))
	require.NoError(t, err)

	assert.Equal(t, "pattern", root.Tag)
	require.Len(t, root.Children, 4)

	version, ok := root.Child("version")
	require.True(t, ok)
	assert.Equal(t, "0.6.8", version.Text)

	block, ok := root.Child("draftBlock")
	require.True(t, ok)
	name, ok := block.Attr("name")
	require.True(t, ok)
	assert.Equal(t, "Front", name)

	assert.Equal(t, 8, root.Count())
}

func TestParse_PreservesAttributeOrder(t *testing.T) {
	root, err := Parse(strings.NewReader(`<point type="endLine" id="2" basePoint="1" length="10"/>`))
	require.NoError(t, err)

	var names []string
	for _, a := range root.Attrs {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"type", "id", "basePoint", "length"}, names)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed", `<pattern><draftBlock></pattern>`},
		{"empty", ``},
		{"garbage", `not xml at all`},
		{"two roots", `<a/><b/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)

			var pe *ParseInputError
			assert.True(t, errors.As(err, &pe), "want *ParseInputError, got %T", err)
			assert.True(t, errors.Is(err, ErrParseInput))
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pattern.sm2d")
	require.NoError(t, os.WriteFile(path, []byte(samplePattern), 0o644))

	root, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pattern", root.Tag)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.sm2d"))
	require.Error(t, err)

	var pe *ParseInputError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Path, "nope.sm2d")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestElement_WalkSkipsChildren(t *testing.T) {
	root, err := Parse(strings.NewReader(samplePattern))
	require.NoError(t, err)

	var tags []string
	root.Walk(func(e *Element) bool {
		tags = append(tags, e.Tag)
		return e.Tag != "draftBlock"
	})
	assert.NotContains(t, tags, "calculation")
	assert.Contains(t, tags, "draftBlock")
}
