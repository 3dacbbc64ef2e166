package daemon

import (
	"adacta/internal/api"
	"adacta/internal/index"
	"adacta/internal/storage"
)

// bundleToAPI builds the wire representation of a bundle from its manifest.
// The fragment listing involves a directory read, so it is opt-in.
func bundleToAPI(bundle *storage.Bundle, withFragments bool) (api.Bundle, error) {
	manifest, err := bundle.LoadManifest()
	if err != nil {
		return api.Bundle{}, err
	}

	payload := api.Bundle{
		ID:         manifest.ID.String(),
		Uploaded:   manifest.Uploaded,
		Reviewed:   manifest.Reviewed,
		Tags:       manifest.Tags,
		Properties: manifest.Properties,
		Revision:   manifest.Revision,
	}
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	if payload.Properties == nil {
		payload.Properties = map[string]string{}
	}
	if withFragments {
		fragments, err := bundle.Fragments()
		if err != nil {
			return api.Bundle{}, err
		}
		payload.Fragments = fragments
	}
	return payload, nil
}

func entriesToAPI(entries []index.Entry) []api.Bundle {
	bundles := make([]api.Bundle, len(entries))
	for i, entry := range entries {
		bundles[i] = api.Bundle{
			ID:         entry.ID.String(),
			Uploaded:   entry.Uploaded,
			Reviewed:   entry.Reviewed,
			Tags:       entry.Tags,
			Properties: entry.Properties,
		}
	}
	return bundles
}
