package tasks

import (
	"fmt"

	"github.com/desertthunder/mdash/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchRecent Phase = iota
	FetchRecommendations
	FetchLibrary
	FetchRecords
	ResolveGenres
	AssembleStats
	SearchSeeds
	TopUpGenre
	ShufflePlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchRecent:
		return "fetch_recent"
	case FetchRecommendations:
		return "fetch_recommendations"
	case FetchLibrary:
		return "fetch_library"
	case FetchRecords:
		return "fetch_records"
	case ResolveGenres:
		return "resolve_genres"
	case AssembleStats:
		return "assemble_stats"
	case SearchSeeds:
		return "search_seeds"
	case TopUpGenre:
		return "top_up_genre"
	case ShufflePlaylist:
		return "shuffle_playlist"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchBranchUpdate(phase Phase, step int, what string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   2,
		Message: fmt.Sprintf("Fetching %s...", what),
	}
}

func libraryPageUpdate(page, offset int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    page,
		Total:   SampleTarget / LibraryPageSize,
		Message: fmt.Sprintf("Fetching library page %d (offset %d)...", page, offset),
	}
}

func fetchRecordsUpdate(sample int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading play counts and history for %d tracks...", sample),
	}
}

func genreBatchUpdate(batch, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveGenres,
		Step:    batch,
		Total:   total,
		Message: fmt.Sprintf("Resolving genres (batch %d of %d)...", batch, total),
	}
}

func assembleUpdate(stats *models.StreamingStats) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AssembleStats,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Assembled stats: %d artists, %d tracks", len(stats.TopArtists), len(stats.TopTracks)),
		Data:    stats,
	}
}

func seedSearchUpdate(step, total int, seed *models.Track) ProgressUpdate {
	msg := "Searching for similar tracks..."
	if seed != nil {
		msg = fmt.Sprintf("Searching for tracks like %s - %s", seed.Artist, seed.Title)
	}
	return ProgressUpdate{
		Phase:   SearchSeeds,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    seed,
	}
}

func topUpUpdate(genre string, remaining int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TopUpGenre,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Filling %d slots from genre %q...", remaining, genre),
	}
}

func shuffleUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ShufflePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Shuffling %d tracks...", count),
	}
}
