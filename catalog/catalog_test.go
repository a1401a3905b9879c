package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataset(t *testing.T) {
	assert := assert.New(t)

	d, err := ParseDataset("Face2Face")
	require.NoError(t, err)
	assert.Equal(Face2Face, d)
	assert.Equal("manipulated_sequences/Face2Face", d.RemotePath())

	d, err = ParseDataset("original_youtube_videos")
	require.NoError(t, err)
	assert.True(d.Archive())

	_, err = ParseDataset("FaceForensics")
	assert.ErrorIs(err, ErrUnknownDataset)
}

func TestAllExcludesArchives(t *testing.T) {
	assert := assert.New(t)
	all := All()
	assert.Len(all, 8)
	for _, d := range all {
		assert.False(d.Archive())
	}
	// Keys covers the archives too, for CLI help.
	assert.Len(Keys(), 10)
}

func TestSupports(t *testing.T) {
	assert := assert.New(t)

	for _, d := range []Dataset{Original, DeepFakeDetectionOriginal, FaceShifter} {
		ok, reason := d.Supports(Masks)
		assert.False(ok, "masks for %s", d)
		assert.NotEmpty(reason)
	}
	for _, d := range []Dataset{Deepfakes, DeepFakeDetection, Face2Face, FaceSwap, NeuralTextures} {
		ok, _ := d.Supports(Masks)
		assert.True(ok, "masks for %s", d)
	}

	for _, d := range All() {
		ok, reason := d.Supports(Models)
		if d == Deepfakes {
			assert.True(ok)
		} else {
			assert.False(ok, "models for %s", d)
			assert.Equal("Models only available for Deepfakes.", reason)
		}
	}

	for _, d := range All() {
		ok, _ := d.Supports(Videos)
		assert.True(ok, "videos for %s", d)
	}
}

func TestParseEnums(t *testing.T) {
	assert := assert.New(t)

	c, err := ParseCompression("c23")
	require.NoError(t, err)
	assert.Equal(CompressionC23, c)
	_, err = ParseCompression("c50")
	assert.ErrorIs(err, ErrUnknownCompression)

	typ, err := ParseAssetType("masks")
	require.NoError(t, err)
	assert.Equal(Masks, typ)
	_, err = ParseAssetType("images")
	assert.ErrorIs(err, ErrUnknownAssetType)

	s, err := ParseServer("CA")
	require.NoError(t, err)
	assert.Equal(ServerCA, s)
	_, err = ParseServer("US")
	assert.ErrorIs(err, ErrUnknownServer)
}

func TestServerURLs(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("http://canis.vc.in.tum.de:8100/v3/", ServerEU.BaseURL())
	assert.Equal("http://kaldir.vc.in.tum.de/faceforensics/v3/", ServerEU2.BaseURL())
	assert.Equal("http://falas.cmpt.sfu.ca:8100/webpage/FaceForensics_TOS.pdf", ServerCA.TOSURL())
}
