package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreLoadReadsTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first_stage.txt"), []byte("Grade the exam for {class_name}."), 0o644))

	store := NewStore(dir)
	tmpl, err := store.Load("first_stage")
	require.NoError(t, err)
	require.Equal(t, "Grade the exam for {class_name}.", tmpl)
}

func TestStoreLoadMissingTemplate(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("does_not_exist")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPromptNotFound))
}

func TestSubstituteReplacesEveryOccurrence(t *testing.T) {
	out := Substitute("Grading for {class_name}. Remember: {class_name}.", map[string]string{"class_name": "Algorithms"})
	require.Equal(t, "Grading for Algorithms. Remember: Algorithms.", out)
}

func TestSubstituteLeavesUnmatchedTokens(t *testing.T) {
	out := Substitute("Grading for {class_name} at {school}.", map[string]string{"class_name": "Algorithms"})
	require.Equal(t, "Grading for Algorithms at {school}.", out)
}

func TestSubstituteNoPlaceholderUnchanged(t *testing.T) {
	out := Substitute("No placeholders here.", map[string]string{"class_name": "Algorithms"})
	require.Equal(t, "No placeholders here.", out)
}

func TestSubstituteSinglePass(t *testing.T) {
	// A value shaped like another token must not be re-expanded.
	out := Substitute("{class_name}", map[string]string{
		"class_name": "{other_key}",
		"other_key":  "should not appear",
	})
	require.Equal(t, "{other_key}", out)
}
