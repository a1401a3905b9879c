// Package catalog maps the FaceForensics++ dataset taxonomy onto remote URLs
// and local paths: which datasets exist, where each lives on the mirror
// servers, which asset types it serves, and how its remote manifests expand
// into individual files.
package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDataset     = errors.New("unknown dataset")
	ErrUnknownCompression = errors.New("unknown compression level")
	ErrUnknownAssetType   = errors.New("unknown asset type")
	ErrUnknownServer      = errors.New("unknown server")
)

// Dataset identifies one downloadable dataset family.
type Dataset int

const (
	Original Dataset = iota
	DeepFakeDetectionOriginal
	Deepfakes
	DeepFakeDetection
	Face2Face
	FaceShifter
	FaceSwap
	NeuralTextures
	// The two archive pseudo-datasets resolve to a single zip file each and
	// ignore the compression and asset type selection entirely.
	OriginalYoutubeVideos
	OriginalYoutubeVideosInfo
)

type manifestKind int

const (
	manifestPairs manifestKind = iota
	manifestDetection
	manifestNone
)

type datasetInfo struct {
	key        string
	remotePath string
	manifest   manifestKind
	// cohort selects the stem list within the detection manifest.
	cohort string
	// flatten expands each manifest pair into two individual stems instead
	// of joining the pair into one name (the original sequence families).
	flatten bool
	masks   bool
	models  bool
	// archiveName is the local filename for archive pseudo-datasets.
	archiveName string
}

var datasets = map[Dataset]datasetInfo{
	Original: {
		key:        "original",
		remotePath: "original_sequences/youtube",
		manifest:   manifestPairs,
		flatten:    true,
	},
	DeepFakeDetectionOriginal: {
		key:        "DeepFakeDetection_original",
		remotePath: "original_sequences/actors",
		manifest:   manifestDetection,
		cohort:     "actors",
	},
	Deepfakes: {
		key:        "Deepfakes",
		remotePath: "manipulated_sequences/Deepfakes",
		manifest:   manifestPairs,
		masks:      true,
		models:     true,
	},
	DeepFakeDetection: {
		key:        "DeepFakeDetection",
		remotePath: "manipulated_sequences/DeepFakeDetection",
		manifest:   manifestDetection,
		cohort:     "DeepFakesDetection",
		masks:      true,
	},
	Face2Face: {
		key:        "Face2Face",
		remotePath: "manipulated_sequences/Face2Face",
		manifest:   manifestPairs,
		masks:      true,
	},
	FaceShifter: {
		key:        "FaceShifter",
		remotePath: "manipulated_sequences/FaceShifter",
		manifest:   manifestPairs,
	},
	FaceSwap: {
		key:        "FaceSwap",
		remotePath: "manipulated_sequences/FaceSwap",
		manifest:   manifestPairs,
		masks:      true,
	},
	NeuralTextures: {
		key:        "NeuralTextures",
		remotePath: "manipulated_sequences/NeuralTextures",
		manifest:   manifestPairs,
		masks:      true,
	},
	OriginalYoutubeVideos: {
		key:         "original_youtube_videos",
		remotePath:  "misc/downloaded_youtube_videos.zip",
		manifest:    manifestNone,
		archiveName: "downloaded_videos.zip",
	},
	OriginalYoutubeVideosInfo: {
		key:         "original_youtube_videos_info",
		remotePath:  "misc/downloaded_youtube_videos_info.zip",
		manifest:    manifestNone,
		archiveName: "downloaded_videosinfo.zip",
	},
}

// All returns the regular datasets covered by the "all" selection, in
// download order. The archive pseudo-datasets must be requested explicitly.
func All() []Dataset {
	return []Dataset{
		Original,
		DeepFakeDetectionOriginal,
		Deepfakes,
		DeepFakeDetection,
		Face2Face,
		FaceShifter,
		FaceSwap,
		NeuralTextures,
	}
}

// Keys returns every valid dataset key, for CLI help output.
func Keys() []string {
	keys := make([]string, 0, len(datasets))
	for _, d := range []Dataset{
		Original, DeepFakeDetectionOriginal, Deepfakes, DeepFakeDetection,
		Face2Face, FaceShifter, FaceSwap, NeuralTextures,
		OriginalYoutubeVideos, OriginalYoutubeVideosInfo,
	} {
		keys = append(keys, datasets[d].key)
	}
	return keys
}

// ParseDataset maps a CLI key to its Dataset.
func ParseDataset(key string) (Dataset, error) {
	for d, info := range datasets {
		if info.key == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDataset, key)
}

func (d Dataset) info() datasetInfo {
	return datasets[d]
}

// Key returns the CLI name of the dataset.
func (d Dataset) Key() string {
	return d.info().key
}

// RemotePath returns the dataset's sub-path on the mirror servers, which is
// also the local directory layout it is downloaded into.
func (d Dataset) RemotePath() string {
	return d.info().remotePath
}

// Archive reports whether the dataset is a single-zip pseudo-dataset rather
// than a manifest-driven file collection.
func (d Dataset) Archive() bool {
	return d.info().manifest == manifestNone
}

func (d Dataset) String() string {
	return d.Key()
}

// Supports reports whether the dataset serves the given asset type. When it
// does not, reason describes why; the combination is skipped, not an error.
func (d Dataset) Supports(t AssetType) (ok bool, reason string) {
	info := d.info()
	switch t {
	case Masks:
		if d == Original || d == DeepFakeDetectionOriginal {
			return false, "Skipping masks for original data."
		}
		if !info.masks {
			return false, fmt.Sprintf("Masks not available for %s.", info.key)
		}
	case Models:
		if !info.models {
			return false, "Models only available for Deepfakes."
		}
	}
	return true, ""
}

// Compression is the encoding quality tier of the stored videos.
type Compression string

const (
	CompressionRaw Compression = "raw"
	CompressionC23 Compression = "c23"
	CompressionC40 Compression = "c40"
)

func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case CompressionRaw, CompressionC23, CompressionC40:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// AssetType selects which kind of file to download for a dataset.
type AssetType string

const (
	Videos AssetType = "videos"
	Masks  AssetType = "masks"
	Models AssetType = "models"
)

func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(s); t {
	case Videos, Masks, Models:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAssetType, s)
	}
}

// Server is one of the fixed dataset mirrors.
type Server string

const (
	ServerEU  Server = "EU"
	ServerEU2 Server = "EU2"
	ServerCA  Server = "CA"
)

var serverURLs = map[Server]string{
	ServerEU:  "http://canis.vc.in.tum.de:8100/",
	ServerEU2: "http://kaldir.vc.in.tum.de/faceforensics/",
	ServerCA:  "http://falas.cmpt.sfu.ca:8100/",
}

func ParseServer(s string) (Server, error) {
	if _, ok := serverURLs[Server(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownServer, s)
	}
	return Server(s), nil
}

// BaseURL returns the root under which all dataset files and manifests live.
func (s Server) BaseURL() string {
	return serverURLs[s] + "v3/"
}

// TOSURL returns the terms-of-use document the user must accept.
func (s Server) TOSURL() string {
	return serverURLs[s] + "webpage/FaceForensics_TOS.pdf"
}
