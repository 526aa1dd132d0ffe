package extractors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/types"
)

// DefaultTitle is used for entries without a title.
const DefaultTitle = "Unknown"

var (
	seasonIDKeys  = []string{"season", "id", "title"}
	episodeIDKeys = []string{"episode", "id", "title"}
)

// manifestTree is one recognized manifest shape.
type manifestTree interface {
	shape() types.ManifestShape
	flatten() []types.StreamDescriptor
}

// flatList is a list of leaves, each with a title and a file.
type flatList []gjson.Result

// seasonTree is seasons holding episodes in their "folder" arrays.
type seasonTree []gjson.Result

// Flatten decodes manifest text and flattens it into stream descriptors in
// document order. Invalid text or an unrecognized shape is a parse failure;
// a recognized shape without a single usable entry is not-found.
func Flatten(text string) (types.ManifestShape, []types.StreamDescriptor, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return "", nil, failure.Parse(types.StageFlatten, text, nil, "manifest is not valid JSON")
	}

	tree := classify(gjson.Parse(trimmed))
	if tree == nil {
		return "", nil, failure.Parse(types.StageFlatten, text, nil, "unrecognized manifest shape")
	}

	streams := tree.flatten()
	if len(streams) == 0 {
		return tree.shape(), nil, failure.NotFound(types.StageFlatten, nil, "manifest has no playable entries")
	}
	return tree.shape(), streams, nil
}

func classify(root gjson.Result) manifestTree {
	switch {
	case root.IsArray():
		entries := root.Array()
		for _, e := range entries {
			if e.Get("folder").IsArray() {
				return seasonTree(entries)
			}
		}
		return flatList(entries)
	case root.IsObject():
		folder := root.Get("folder")
		if folder.IsArray() {
			// A folder of folders is the season list; a folder of files is
			// a single season.
			for _, e := range folder.Array() {
				if e.Get("folder").IsArray() {
					return seasonTree(folder.Array())
				}
			}
			return seasonTree{root}
		}
		if root.Get("file").Exists() {
			return flatList{root}
		}
	}
	return nil
}

func (l flatList) shape() types.ManifestShape { return types.ManifestFlatList }

func (l flatList) flatten() []types.StreamDescriptor {
	var out []types.StreamDescriptor
	for _, entry := range l {
		file, ok := leafFile(entry)
		if !ok {
			continue
		}
		out = append(out, types.StreamDescriptor{
			Title:     leafTitle(entry),
			FileToken: file,
		})
	}
	return out
}

func (t seasonTree) shape() types.ManifestShape { return types.ManifestSeasonTree }

func (t seasonTree) flatten() []types.StreamDescriptor {
	var out []types.StreamDescriptor
	for si, season := range t {
		episodes := season.Get("folder")
		if !episodes.IsArray() {
			// a loose file among seasons (trailer, extra) belongs to no season
			if file, ok := leafFile(season); ok {
				out = append(out, types.StreamDescriptor{Title: leafTitle(season), FileToken: file})
			}
			continue
		}
		seasonID := identifier(season, seasonIDKeys, si)
		for ei, episode := range episodes.Array() {
			episodeID := identifier(episode, episodeIDKeys, ei)
			for _, leaf := range episodeLeaves(episode) {
				file, ok := leafFile(leaf)
				if !ok {
					continue
				}
				out = append(out, types.StreamDescriptor{
					Title:     fmt.Sprintf("S%sE%s - %s", seasonID, episodeID, leafTitle(leaf)),
					FileToken: file,
					Season:    seasonID,
					Episode:   episodeID,
				})
			}
		}
	}
	return out
}

// episodeLeaves returns the file entries of an episode. An episode carrying a
// file directly is its own leaf.
func episodeLeaves(episode gjson.Result) []gjson.Result {
	if folder := episode.Get("folder"); folder.IsArray() {
		return folder.Array()
	}
	return []gjson.Result{episode}
}

func leafFile(entry gjson.Result) (string, bool) {
	file := entry.Get("file")
	if file.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(file.Str)
	return s, s != ""
}

func leafTitle(entry gjson.Result) string {
	if title := strings.TrimSpace(entry.Get("title").String()); title != "" {
		return title
	}
	return DefaultTitle
}

// identifier returns the first present key verbatim; numbers keep their
// source spelling. Entries without any key are numbered by position.
func identifier(entry gjson.Result, keys []string, index int) string {
	for _, key := range keys {
		v := entry.Get(key)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return strconv.Itoa(index + 1)
}
