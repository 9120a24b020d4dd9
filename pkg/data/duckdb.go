package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS mangas (
	id         VARCHAR PRIMARY KEY,
	name       VARCHAR NOT NULL,
	source_url VARCHAR,
	status     VARCHAR
);
CREATE TABLE IF NOT EXISTS chapters (
	id           VARCHAR PRIMARY KEY,
	manga_id     VARCHAR NOT NULL,
	name         VARCHAR,
	url          VARCHAR,
	position     INTEGER,
	downloaded   BOOLEAN DEFAULT FALSE,
	file_path    VARCHAR,
	status       VARCHAR,
	images_ok    INTEGER DEFAULT 0,
	images_total INTEGER DEFAULT 0,
	last_error   VARCHAR
);
`

// InitDuckDB opens (creating if needed) the library database at path.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Repository stores the download library: mangas and the last known state
// of each of their chapters.
type Repository struct {
	db *sql.DB
}

// NewDuckDBRepository opens the library at path.
func NewDuckDBRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// MangaID derives a stable ID from the manga's source URL.
func MangaID(sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
}

// ChapterID derives a stable ID from the chapter URL.
func ChapterID(chapterURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chapterURL)).String()
}

func (r *Repository) SaveManga(manga *Manga) error {
	_, err := r.db.Exec(`
		INSERT INTO mangas (id, name, source_url, status) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, source_url = excluded.source_url, status = excluded.status`,
		manga.ID, manga.Name, manga.SourceURL, manga.Status)
	if err != nil {
		return fmt.Errorf("failed to save manga: %w", err)
	}
	return nil
}

// GetManga returns nil without error when the manga is unknown.
func (r *Repository) GetManga(id string) (*Manga, error) {
	var m Manga
	var sourceURL, status sql.NullString
	err := r.db.QueryRow(`SELECT id, name, source_url, status FROM mangas WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &sourceURL, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manga: %w", err)
	}
	m.SourceURL = sourceURL.String
	m.Status = status.String
	return &m, nil
}

func (r *Repository) ListMangas() ([]*Manga, error) {
	rows, err := r.db.Query(`SELECT id, name, source_url, status FROM mangas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mangas: %w", err)
	}
	defer rows.Close()

	var mangas []*Manga
	for rows.Next() {
		var m Manga
		var sourceURL, status sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &sourceURL, &status); err != nil {
			return nil, err
		}
		m.SourceURL = sourceURL.String
		m.Status = status.String
		mangas = append(mangas, &m)
	}
	return mangas, rows.Err()
}

// DeleteManga removes a manga and all of its chapters.
func (r *Repository) DeleteManga(mangaID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chapters WHERE manga_id = ?`, mangaID); err != nil {
		return fmt.Errorf("failed to delete chapters: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM mangas WHERE id = ?`, mangaID); err != nil {
		return fmt.Errorf("failed to delete manga: %w", err)
	}
	return tx.Commit()
}

func (r *Repository) SaveChapter(chapter *Chapter) error {
	_, err := r.db.Exec(`
		INSERT INTO chapters (id, manga_id, name, url, position, downloaded, file_path, status, images_ok, images_total, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			manga_id = excluded.manga_id,
			name = excluded.name,
			url = excluded.url,
			position = excluded.position,
			downloaded = excluded.downloaded,
			file_path = excluded.file_path,
			status = excluded.status,
			images_ok = excluded.images_ok,
			images_total = excluded.images_total,
			last_error = excluded.last_error`,
		chapter.ID, chapter.MangaID, chapter.Name, chapter.URL, chapter.Position, chapter.Downloaded,
		chapter.FilePath, chapter.Status, chapter.ImagesOK, chapter.ImagesTotal, chapter.LastError)
	if err != nil {
		return fmt.Errorf("failed to save chapter: %w", err)
	}
	return nil
}

// GetChapters returns a manga's chapters in source order.
func (r *Repository) GetChapters(mangaID string) ([]*Chapter, error) {
	rows, err := r.db.Query(`
		SELECT id, manga_id, name, url, position, downloaded, file_path, status, images_ok, images_total, last_error
		FROM chapters WHERE manga_id = ? ORDER BY position`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		var c Chapter
		var name, url, filePath, status, lastError sql.NullString
		var position, ok, total sql.NullInt64
		var downloaded sql.NullBool
		if err := rows.Scan(&c.ID, &c.MangaID, &name, &url, &position, &downloaded, &filePath, &status, &ok, &total, &lastError); err != nil {
			return nil, err
		}
		c.Name = name.String
		c.URL = url.String
		c.Position = int(position.Int64)
		c.Downloaded = downloaded.Bool
		c.FilePath = filePath.String
		c.Status = status.String
		c.ImagesOK = int(ok.Int64)
		c.ImagesTotal = int(total.Int64)
		c.LastError = lastError.String
		chapters = append(chapters, &c)
	}
	return chapters, rows.Err()
}

func (r *Repository) UpdateChapterStatus(chapterID string, downloaded bool, filePath string) error {
	_, err := r.db.Exec(`UPDATE chapters SET downloaded = ?, file_path = ? WHERE id = ?`, downloaded, filePath, chapterID)
	if err != nil {
		return fmt.Errorf("failed to update chapter status: %w", err)
	}
	return nil
}

// GetMangaWithChapterCount returns the manga with its total and downloaded
// chapter counts.
func (r *Repository) GetMangaWithChapterCount(mangaID string) (*Manga, int, int, error) {
	manga, err := r.GetManga(mangaID)
	if err != nil || manga == nil {
		return manga, 0, 0, err
	}

	var total, downloaded int
	err = r.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE downloaded)
		FROM chapters WHERE manga_id = ?`, mangaID).Scan(&total, &downloaded)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return manga, total, downloaded, nil
}

// RecordOutcome stores the result of a chapter pipeline run.
func (r *Repository) RecordOutcome(mangaID string, position int, outcome DownloadOutcome) error {
	chapter := &Chapter{
		ID:          ChapterID(outcome.ChapterURL),
		MangaID:     mangaID,
		Name:        outcome.ChapterName,
		URL:         outcome.ChapterURL,
		Position:    position,
		Downloaded:  outcome.Downloaded(),
		FilePath:    outcome.LocalDir,
		Status:      string(outcome.State),
		ImagesOK:    len(outcome.SuccessfulItems()),
		ImagesTotal: len(outcome.Items),
	}
	if outcome.Packaging != nil && outcome.Packaging.Err == nil {
		chapter.FilePath = outcome.Packaging.Path
	}
	if outcome.Err != nil {
		chapter.LastError = outcome.Err.Error()
	} else if outcome.Packaging != nil && outcome.Packaging.Err != nil {
		chapter.LastError = outcome.Packaging.Err.Error()
	}
	return r.SaveChapter(chapter)
}
