package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"modernc.org/sqlite"

	"autovault/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite's LOWER only folds ASCII; searches go through this instead.
const lowerFunc = "unicode_lower"

func init() {
	err := sqlite.RegisterDeterministicScalarFunction(lowerFunc, 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", lowerFunc, err))
	}
}

const imageColumns = "id, title, description, category, price, image_url, is_premium, created_at, updated_at"

// SQLiteStore implements Store on top of a single-connection SQLite database.
type SQLiteStore struct {
	db               *sql.DB
	connectionString string
	log              *zap.Logger
}

// NewSQLiteStore opens the database at path. ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// SQLite serializes writers anyway; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if path != ":memory:" {
		db.SetConnMaxLifetime(time.Hour)
	}

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", path, err)
	}

	log.Info("connected to sqlite database", zap.String("path", path))
	return &SQLiteStore{db: db, connectionString: path, log: log}, nil
}

// Migrate applies the embedded goose migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.log.Sugar()})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(strings.TrimSpace(format), v...)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, account.Name, account.Email, account.PasswordHash, account.IsAdmin, now.UnixNano(), now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with email %q: %w", account.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.PurchasedImages == nil {
		account.PurchasedImages = []string{}
	}
	return nil
}

func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, is_admin, created_at, updated_at FROM users WHERE id = ?", id)
	return s.scanAccount(ctx, row)
}

func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, is_admin, created_at, updated_at FROM users WHERE email = ?", email)
	return s.scanAccount(ctx, row)
}

func (s *SQLiteStore) scanAccount(ctx context.Context, row *sql.Row) (*models.Account, error) {
	var (
		account              models.Account
		createdAt, updatedAt int64
	)
	err := row.Scan(&account.ID, &account.Name, &account.Email, &account.PasswordHash, &account.IsAdmin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.CreatedAt = time.Unix(0, createdAt).UTC()
	account.UpdatedAt = time.Unix(0, updatedAt).UTC()

	purchased, err := s.purchasedImages(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.PurchasedImages = purchased
	return &account, nil
}

func (s *SQLiteStore) purchasedImages(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT image_id FROM user_purchases WHERE user_id = ? ORDER BY created_at, rowid", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchased images: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan purchased image: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_admin = ?, updated_at = ? WHERE email = ?", isAdmin, time.Now().UTC().UnixNano(), email)
	if err != nil {
		return fmt.Errorf("failed to update admin flag for %s: %w", email, err)
	}
	return expectAffected(res)
}

func (s *SQLiteStore) CreateImage(ctx context.Context, image *models.Image) error {
	now := time.Now().UTC()
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, image.Title, image.Description, string(image.Category), image.Price, image.ImageURL, image.IsPremium,
		now.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	image.ID = id
	image.CreatedAt = now
	image.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetImage(ctx context.Context, id string) (*models.Image, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	image, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan image %s: %w", id, err)
	}
	return image, nil
}

func (s *SQLiteStore) GetImages(ctx context.Context, ids []string) ([]models.Image, error) {
	if len(ids) == 0 {
		return []models.Image{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]models.Image, len(ids))
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		byID[image.ID] = *image
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	images := make([]models.Image, 0, len(byID))
	for _, id := range ids {
		if image, ok := byID[id]; ok {
			images = append(images, image)
		}
	}
	return images, nil
}

func (s *SQLiteStore) ListImages(ctx context.Context, filter models.ImageFilter) ([]models.Image, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		where = append(where, lowerFunc+`(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Premium != nil {
		where = append(where, "is_premium = ?")
		args = append(args, *filter.Premium)
	}

	query := "SELECT " + imageColumns + " FROM images"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.Sort {
	case models.SortPriceAsc:
		query += " ORDER BY price ASC, created_at DESC, rowid DESC"
	case models.SortPriceDesc:
		query += " ORDER BY price DESC, created_at DESC, rowid DESC"
	default:
		query += " ORDER BY created_at DESC, rowid DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	images := []models.Image{}
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *image)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) UpdateImage(ctx context.Context, image *models.Image) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE images SET title = ?, description = ?, category = ?, price = ?, image_url = ?, is_premium = ?, updated_at = ?
		WHERE id = ?`,
		image.Title, image.Description, string(image.Category), image.Price, image.ImageURL, image.IsPremium, now.UnixNano(), image.ID)
	if err != nil {
		return fmt.Errorf("failed to update image %s: %w", image.ID, err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	image.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return expectAffected(res)
}

func (s *SQLiteStore) Fulfill(ctx context.Context, grant models.Grant) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin fulfillment transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", grant.UserID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("account %s: %w", grant.UserID, ErrNotFound)
		}
		return false, fmt.Errorf("failed to look up account %s: %w", grant.UserID, err)
	}

	now := time.Now().UTC().UnixNano()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, image_id, payment_id, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payment_id) DO NOTHING`,
		uuid.New().String(), grant.UserID, grant.ImageID, grant.PaymentID, grant.Amount, models.OrderStatusCompleted, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert order for payment %s: %w", grant.PaymentID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read inserted order count: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_purchases (user_id, image_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, image_id) DO NOTHING`,
		grant.UserID, grant.ImageID, now)
	if err != nil {
		return false, fmt.Errorf("failed to grant image %s to %s: %w", grant.ImageID, grant.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit fulfillment for payment %s: %w", grant.PaymentID, err)
	}
	return inserted > 0, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.user_id, o.image_id, o.payment_id, o.amount, o.status, o.created_at,
			i.id, i.title, i.description, i.category, i.price, i.image_url, i.is_premium, i.created_at, i.updated_at
		FROM orders o
		LEFT JOIN images i ON i.id = o.image_id
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", userID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	orders := []models.Order{}
	for rows.Next() {
		var (
			order     models.Order
			createdAt int64
			imgID     sql.NullString
			title     sql.NullString
			desc      sql.NullString
			category  sql.NullString
			price     sql.NullFloat64
			imageURL  sql.NullString
			premium   sql.NullBool
			imgCreate sql.NullInt64
			imgUpdate sql.NullInt64
		)
		err := rows.Scan(&order.ID, &order.UserID, &order.ImageID, &order.PaymentID, &order.Amount, &order.Status, &createdAt,
			&imgID, &title, &desc, &category, &price, &imageURL, &premium, &imgCreate, &imgUpdate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.CreatedAt = time.Unix(0, createdAt).UTC()
		if imgID.Valid {
			order.Image = &models.Image{
				ID:          imgID.String,
				Title:       title.String,
				Description: desc.String,
				Category:    models.Category(category.String),
				Price:       price.Float64,
				ImageURL:    imageURL.String,
				IsPremium:   premium.Bool,
				CreatedAt:   time.Unix(0, imgCreate.Int64).UTC(),
				UpdatedAt:   time.Unix(0, imgUpdate.Int64).UTC(),
			}
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.Image, error) {
	var (
		image                models.Image
		category             string
		createdAt, updatedAt int64
	)
	err := row.Scan(&image.ID, &image.Title, &image.Description, &category, &image.Price, &image.ImageURL, &image.IsPremium,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	image.Category = models.Category(category)
	image.CreatedAt = time.Unix(0, createdAt).UTC()
	image.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &image, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
