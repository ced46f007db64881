package services

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	_ "github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/rfberaldo/sqlz"
	"github.com/rfberaldo/sqlz/binds"
)

var (
	//go:embed sql-migrations
	sqlMigrationsFs embed.FS

	registerBindsOnce sync.Once
)

// sqlExecer is satisfied by both *sqlz.DB and *sqlz.Tx.
type sqlExecer interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ConnectSQLite opens a sqlite database through sqlz using the pure-Go driver.
func ConnectSQLite(dsn string) (*sqlz.DB, error) {
	registerBindsOnce.Do(func() {
		binds.Register("sqlite", binds.BindByDriver("sqlite3"))
	})

	db, err := sqlz.Connect("sqlite", dsn)

	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite database '%s': %w", dsn, err)
	}

	return db, nil
}

/*
MigrateDatabase runs every embedded "commit" script in name order.
Scripts are written to be re-runnable.
*/
func MigrateDatabase(db *sqlz.DB) error {
	var (
		err  error
		dirs []fs.DirEntry
		b    []byte
	)

	if dirs, err = sqlMigrationsFs.ReadDir("sql-migrations"); err != nil {
		return fmt.Errorf("error reading migrations: %w", err)
	}

	for _, d := range dirs {
		if d.IsDir() || !strings.HasPrefix(d.Name(), "commit") {
			continue
		}

		if b, err = fs.ReadFile(sqlMigrationsFs, filepath.Join("sql-migrations", d.Name())); err != nil {
			return fmt.Errorf("error reading migration '%s': %w", d.Name(), err)
		}

		if err = runSqlScript(db, b); err != nil && !isIgnorableError(err) {
			return fmt.Errorf("error running migration '%s': %w", d.Name(), err)
		}
	}

	return nil
}

func runSqlScript(db *sqlz.DB, script []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	_, err := db.Exec(ctx, string(script))
	return err
}

func isIgnorableError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column")
}

type SQLCatalogStoreConfig struct {
	DB *sqlz.DB
}

type SQLCatalogStore struct {
	db *sqlz.DB
}

type albumRow struct {
	Slug         string         `db:"slug"`
	Title        string         `db:"title"`
	Subtitle     sql.NullString `db:"subtitle"`
	CoverImageID sql.NullString `db:"cover_image_id"`
	SortOrder    int            `db:"sort_order"`
	CreatedAt    string         `db:"created_at"`
	Published    bool           `db:"published"`
}

type photoRow struct {
	ID               string         `db:"id"`
	AlbumSlug        string         `db:"album_slug"`
	FilenameOriginal string         `db:"filename_original"`
	CFImageID        string         `db:"cf_image_id"`
	Width            int            `db:"width"`
	Height           int            `db:"height"`
	Alt              sql.NullString `db:"alt"`
	Exif             sql.NullString `db:"exif"`
	Tags             string         `db:"tags"`
	CreatedAt        string         `db:"created_at"`
	Published        bool           `db:"published"`
}

type countRow struct {
	Count int `db:"count"`
}

func NewSQLCatalogStore(config SQLCatalogStoreConfig) SQLCatalogStore {
	return SQLCatalogStore{
		db: config.DB,
	}
}

func (s SQLCatalogStore) Albums(ctx context.Context) ([]models.Album, error) {
	var (
		err  error
		rows []albumRow
	)

	sql := `
SELECT
   a.slug
   , a.title
   , a.subtitle
   , a.cover_image_id
   , a.sort_order
   , a.created_at
   , a.published
FROM albums AS a
ORDER BY a.sort_order, a.slug
`

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &rows, sql); err != nil && !sqlz.IsNotFound(err) {
		return nil, fmt.Errorf("error querying albums: %w", err)
	}

	result := make([]models.Album, 0, len(rows))

	for _, row := range rows {
		album := models.Album{
			Slug:      row.Slug,
			Title:     row.Title,
			Order:     row.SortOrder,
			Published: row.Published,
		}

		if row.Subtitle.Valid {
			album.Subtitle = &row.Subtitle.String
		}

		if row.CoverImageID.Valid {
			album.CoverImageID = &row.CoverImageID.String
		}

		if album.CreatedAt, err = time.Parse(time.RFC3339Nano, row.CreatedAt); err != nil {
			return nil, fmt.Errorf("error parsing created_at for album '%s': %w", row.Slug, err)
		}

		result = append(result, album)
	}

	return result, nil
}

func (s SQLCatalogStore) Photos(ctx context.Context) ([]models.Photo, error) {
	var (
		err  error
		rows []photoRow
	)

	sql := `
SELECT
   p.id
   , p.album_slug
   , p.filename_original
   , p.cf_image_id
   , p.width
   , p.height
   , p.alt
   , p.exif
   , p.tags
   , p.created_at
   , p.published
FROM photos AS p
ORDER BY p.rowid
`

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &rows, sql); err != nil && !sqlz.IsNotFound(err) {
		return nil, fmt.Errorf("error querying photos: %w", err)
	}

	result := make([]models.Photo, 0, len(rows))

	for _, row := range rows {
		photo, err := row.toModel()

		if err != nil {
			return nil, err
		}

		result = append(result, photo)
	}

	return result, nil
}

// AppendPhoto inserts a single row. One statement is one atomic append.
func (s SQLCatalogStore) AppendPhoto(ctx context.Context, photo models.Photo) error {
	return insertPhoto(ctx, s.db, photo)
}

func insertPhoto(ctx context.Context, db sqlExecer, photo models.Photo) error {
	var (
		err  error
		exif []byte
		tags []byte
		alt  sql.NullString
		exfs sql.NullString
	)

	if photo.Tags == nil {
		photo.Tags = []string{}
	}

	if tags, err = json.Marshal(photo.Tags); err != nil {
		return fmt.Errorf("error encoding tags: %w", err)
	}

	if photo.Exif != nil {
		if exif, err = json.Marshal(photo.Exif); err != nil {
			return fmt.Errorf("error encoding exif: %w", err)
		}

		exfs = sql.NullString{String: string(exif), Valid: true}
	}

	if photo.Alt != nil {
		alt = sql.NullString{String: *photo.Alt, Valid: true}
	}

	sql := `
INSERT INTO photos (
   id
   , album_slug
   , filename_original
   , cf_image_id
   , width
   , height
   , alt
   , exif
   , tags
   , created_at
   , published
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		photo.ID,
		photo.AlbumSlug,
		photo.FilenameOriginal,
		photo.CFImageID,
		photo.Width,
		photo.Height,
		alt,
		exfs,
		string(tags),
		photo.CreatedAt.UTC().Format(time.RFC3339Nano),
		photo.Published,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if _, err = db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error inserting photo %s: %w", photo.ID, err)
	}

	return nil
}

/*
SeedFromJSON copies the JSON catalog into empty tables inside a single
transaction, so a failed seed leaves the tables empty for the next start.
It does nothing once the albums table holds any row.
*/
func (s SQLCatalogStore) SeedFromJSON(ctx context.Context, source CatalogStore) error {
	var (
		err    error
		count  countRow
		tx     *sqlz.Tx
		albums []models.Album
		photos []models.Photo
	)

	qctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.QueryRow(qctx, &count, `SELECT COUNT(*) AS count FROM albums`); err != nil {
		return fmt.Errorf("error counting albums: %w", err)
	}

	if count.Count > 0 {
		return nil
	}

	if albums, err = source.Albums(ctx); err != nil {
		return err
	}

	if photos, err = source.Photos(ctx); err != nil {
		return err
	}

	if tx, err = s.db.Begin(ctx); err != nil {
		return fmt.Errorf("error starting seed transaction: %w", err)
	}

	for _, album := range albums {
		if err = insertAlbum(ctx, tx, album); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	for _, photo := range photos {
		if err = insertPhoto(ctx, tx, photo); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing seed transaction: %w", err)
	}

	return nil
}

func insertAlbum(ctx context.Context, db sqlExecer, album models.Album) error {
	sql := `
INSERT INTO albums (
   slug
   , title
   , subtitle
   , cover_image_id
   , sort_order
   , created_at
   , published
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		album.Slug,
		album.Title,
		nullString(album.Subtitle),
		nullString(album.CoverImageID),
		album.Order,
		album.CreatedAt.UTC().Format(time.RFC3339Nano),
		album.Published,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if _, err := db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error inserting album '%s': %w", album.Slug, err)
	}

	return nil
}

func (row photoRow) toModel() (models.Photo, error) {
	var (
		err error
	)

	result := models.Photo{
		ID:               row.ID,
		AlbumSlug:        row.AlbumSlug,
		FilenameOriginal: row.FilenameOriginal,
		CFImageID:        row.CFImageID,
		Width:            row.Width,
		Height:           row.Height,
		Tags:             []string{},
		Published:        row.Published,
	}

	if row.Alt.Valid {
		result.Alt = &row.Alt.String
	}

	if row.Exif.Valid && row.Exif.String != "" {
		result.Exif = &models.ExifData{}

		if err = json.Unmarshal([]byte(row.Exif.String), result.Exif); err != nil {
			return result, fmt.Errorf("error decoding exif for photo %s: %w", row.ID, err)
		}
	}

	if row.Tags != "" {
		if err = json.Unmarshal([]byte(row.Tags), &result.Tags); err != nil {
			return result, fmt.Errorf("error decoding tags for photo %s: %w", row.ID, err)
		}
	}

	if result.CreatedAt, err = time.Parse(time.RFC3339Nano, row.CreatedAt); err != nil {
		return result, fmt.Errorf("error parsing created_at for photo %s: %w", row.ID, err)
	}

	return result, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *s, Valid: true}
}
