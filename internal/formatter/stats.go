package formatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// StatsToCSV converts the top tracks to CSV with columns: Rank, ID, Title, Artist, Album, Plays, Minutes
func StatsToCSV(stats *models.StreamingStats) ([]byte, error) {
	rows := make([][]string, 0, len(stats.TopTracks))
	for i, s := range stats.TopTracks {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.ID,
			s.Track.Title,
			s.Track.Artist,
			s.Track.AlbumTitle,
			strconv.Itoa(s.PlayCount),
			strconv.Itoa(s.TotalListeningTimeMinutes),
		})
	}
	return writeCSV([]string{"Rank", "ID", "Title", "Artist", "Album", "Plays", "Minutes"}, rows)
}

// ArtistsToCSV converts the top artists to CSV with columns: Rank, ID, Name, Plays, Minutes
func ArtistsToCSV(stats *models.StreamingStats) ([]byte, error) {
	rows := make([][]string, 0, len(stats.TopArtists))
	for i, a := range stats.TopArtists {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.ID,
			a.Name,
			strconv.Itoa(a.PlayCount),
			strconv.Itoa(a.TotalListeningTimeMinutes),
		})
	}
	return writeCSV([]string{"Rank", "ID", "Name", "Plays", "Minutes"}, rows)
}

// StatsToMarkdown renders the stats as a Markdown report.
func StatsToMarkdown(stats *models.StreamingStats) ([]byte, error) {
	var buf bytes.Buffer
	w := stats.WeeklyStats

	buf.WriteString("# Listening Stats\n\n")
	buf.WriteString(fmt.Sprintf("**Total listening time**: %s\n", FormatMinutes(stats.TotalListeningTimeMinutes)))
	buf.WriteString(fmt.Sprintf("**Week of**: %s\n\n", w.WeekStartDate.Format("2006-01-02")))

	buf.WriteString("## This Week\n\n")
	buf.WriteString("| Tracks | Artists | Time | Per day | Most active |\n")
	buf.WriteString("| --- | --- | --- | --- | --- |\n")
	buf.WriteString(fmt.Sprintf("| %d | %d | %s | %d | %s |\n\n",
		w.TotalTracks, w.TotalArtists, FormatMinutes(w.TotalListeningTimeMinutes), w.AverageTracksPerDay, w.MostActiveDay))
	if len(w.TopGenres) > 0 {
		buf.WriteString(fmt.Sprintf("**Top genres**: %s\n\n", strings.Join(w.TopGenres, ", ")))
	}

	buf.WriteString("## Top Artists\n\n")
	for i, a := range stats.TopArtists {
		buf.WriteString(fmt.Sprintf("%d. %s (%d plays, %s)\n", i+1, a.Name, a.PlayCount, FormatMinutes(a.TotalListeningTimeMinutes)))
	}

	buf.WriteString("\n## Top Tracks\n\n")
	for i, s := range stats.TopTracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%d plays)\n", i+1, s.Track.Artist, s.Track.Title, s.PlayCount))
	}

	if len(stats.ListeningHistory) > 0 {
		buf.WriteString("\n## Recent Sessions\n\n")
		for _, session := range stats.ListeningHistory {
			buf.WriteString(fmt.Sprintf("- %s: %s\n", session.StartTime.Format("Mon 15:04"), sessionTitles(session)))
		}
	}

	return buf.Bytes(), nil
}

// StatsToText renders the stats as styled terminal text. A nil palette uses the default colors.
func StatsToText(stats *models.StreamingStats, p *Palette) ([]byte, error) {
	p = palette(p)
	var buf bytes.Buffer
	w := stats.WeeklyStats

	buf.WriteString(p.title.Render("Listening Stats") + "\n")
	buf.WriteString(fmt.Sprintf("Total time: %s\n", p.ok.Render(FormatMinutes(stats.TotalListeningTimeMinutes))))
	buf.WriteString(fmt.Sprintf("This week: %d tracks, %d artists, %d per day, most active on %s\n",
		w.TotalTracks, w.TotalArtists, w.AverageTracksPerDay, w.MostActiveDay))
	if len(w.TopGenres) > 0 {
		buf.WriteString(fmt.Sprintf("Genres: %s\n", p.help.Render(strings.Join(w.TopGenres, ", "))))
	}

	buf.WriteString("\n" + p.title.Render("Top Artists") + "\n")
	if len(stats.TopArtists) == 0 {
		buf.WriteString(p.warn.Render("No listening activity yet") + "\n")
	}
	for i, a := range stats.TopArtists {
		buf.WriteString(fmt.Sprintf("%2d. %s %s\n", i+1, p.ok.Render(a.Name), p.help.Render(fmt.Sprintf("%d plays", a.PlayCount))))
	}

	buf.WriteString("\n" + p.title.Render("Top Tracks") + "\n")
	for i, s := range stats.TopTracks {
		buf.WriteString(fmt.Sprintf("%2d. %s - %s %s\n", i+1, s.Track.Artist, s.Track.Title, p.help.Render(fmt.Sprintf("%d plays", s.PlayCount))))
	}

	return buf.Bytes(), nil
}

// RenderStats renders stats in the given format.
func RenderStats(stats *models.StreamingStats, format Format, p *Palette) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(stats, true)
	case FormatCSV:
		return StatsToCSV(stats)
	case FormatMarkdown:
		return StatsToMarkdown(stats)
	default:
		return StatsToText(stats, p)
	}
}

// RenderPlaylist renders a playlist in the given format.
func RenderPlaylist(playlist *models.Playlist, format Format, p *Palette) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(playlist, true)
	case FormatCSV:
		return PlaylistToCSV(playlist)
	case FormatMarkdown:
		return PlaylistToMarkdown(playlist, "")
	default:
		return PlaylistToText(playlist, p)
	}
}

func sessionTitles(session models.ListeningSession) string {
	titles := make([]string, 0, len(session.Tracks))
	for _, t := range session.Tracks {
		titles = append(titles, t.Artist+" - "+t.Title)
	}
	return strings.Join(titles, ", ")
}
