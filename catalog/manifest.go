package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	pairsManifestPath     = "misc/filelist.json"
	detectionManifestPath = "misc/deepfake_detection_filenames.json"
)

// The Deepfakes model release ships the same three weight files per sequence
// pair folder.
var modelFilenames = []string{"decoder_A.h5", "decoder_B.h5", "encoder.h5"}

// A Job is one file to acquire: where it lives remotely and where it belongs
// below the output directory.
type Job struct {
	URL     string
	RelPath string
}

// A Resolver expands dataset selections into ordered download jobs, fetching
// the remote manifests it needs as it goes. Manifests are never cached;
// every Resolve call re-fetches.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver returns a Resolver rooted at baseURL (a Server.BaseURL()). A
// nil client falls back to http.DefaultClient.
func NewResolver(baseURL string, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		client:  client,
	}
}

// Resolve returns the ordered download jobs for one (dataset, asset type,
// compression) selection. limit > 0 truncates the underlying stem list to
// its first limit entries before filename expansion. Unsupported
// combinations (see Dataset.Supports) yield zero jobs and no error; manifest
// fetch or decode failures are returned to the caller, which is expected to
// log and move on to the next dataset.
func (r *Resolver) Resolve(ctx context.Context, d Dataset, t AssetType, c Compression, limit int) ([]Job, error) {
	info := d.info()

	if d.Archive() {
		return []Job{{
			URL:     r.baseURL + info.remotePath,
			RelPath: info.archiveName,
		}}, nil
	}

	if ok, _ := d.Supports(t); !ok {
		return nil, nil
	}

	stems, err := r.stems(ctx, d, t)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(stems) > limit {
		stems = stems[:limit]
	}

	jobs := make([]Job, 0, len(stems))
	switch t {
	case Videos:
		for _, stem := range stems {
			jobs = append(jobs, Job{
				URL:     r.fileURL(info.remotePath, string(c), "videos", stem+".mp4"),
				RelPath: filepath.Join(info.remotePath, string(c), "videos", stem+".mp4"),
			})
		}
	case Masks:
		// Mask videos have a single quality tier; locally they land in a
		// plain videos/ directory below the dataset.
		for _, stem := range stems {
			jobs = append(jobs, Job{
				URL:     r.fileURL(info.remotePath, "masks", "videos", stem+".mp4"),
				RelPath: filepath.Join(info.remotePath, "videos", stem+".mp4"),
			})
		}
	case Models:
		for _, folder := range stems {
			for _, name := range modelFilenames {
				jobs = append(jobs, Job{
					URL:     r.fileURL(info.remotePath, "models", folder, name),
					RelPath: filepath.Join(info.remotePath, "models", folder, name),
				})
			}
		}
	}
	return jobs, nil
}

// stems fetches the dataset's manifest and reduces it to the list of
// filename stems (or model folder names) to download.
func (r *Resolver) stems(ctx context.Context, d Dataset, t AssetType) ([]string, error) {
	info := d.info()
	switch info.manifest {
	case manifestDetection:
		var cohorts map[string][]string
		if err := r.fetchJSON(ctx, detectionManifestPath, &cohorts); err != nil {
			return nil, err
		}
		stems, ok := cohorts[info.cohort]
		if !ok {
			return nil, fmt.Errorf("manifest %s has no cohort %q", detectionManifestPath, info.cohort)
		}
		return stems, nil
	case manifestPairs:
		var pairs [][]string
		if err := r.fetchJSON(ctx, pairsManifestPath, &pairs); err != nil {
			return nil, err
		}
		stems := make([]string, 0, 2*len(pairs))
		for _, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("manifest %s: expected filename pair, got %d entries", pairsManifestPath, len(pair))
			}
			if info.flatten {
				stems = append(stems, pair[0], pair[1])
				continue
			}
			stems = append(stems, pair[0]+"_"+pair[1])
			if t != Models {
				stems = append(stems, pair[1]+"_"+pair[0])
			}
		}
		return stems, nil
	default:
		return nil, fmt.Errorf("dataset %s has no manifest", info.key)
	}
}

func (r *Resolver) fetchJSON(ctx context.Context, relURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+relURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create manifest request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch manifest %s: %w", relURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch manifest %s: unexpected status %s", relURL, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", relURL, err)
	}
	return nil
}

func (r *Resolver) fileURL(parts ...string) string {
	return r.baseURL + strings.Join(parts, "/")
}
