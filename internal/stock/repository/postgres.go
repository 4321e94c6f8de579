package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
)

const pgUniqueViolation = "23505"

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, rec *model.StockRecord) error {
	query := `
        INSERT INTO stock_records (
            id, location_id, product_id, variant_id,
            quantity, reserved, defective, version,
            created_at, updated_at
        )
        VALUES (
            :id, :location_id, :product_id, :variant_id,
            :quantity, :reserved, :defective, :version,
            :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, rec)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return stock.ErrDuplicateLocation
		}
		return fmt.Errorf("failed to create stock record: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id model.StockRecordID) (*model.StockRecord, error) {
	var rec model.StockRecord
	err := r.DB.GetContext(ctx, &rec, `SELECT * FROM stock_records WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stock.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) GetByLocationItem(ctx context.Context, locationID model.LocationID, productID *model.ProductID, variantID *model.VariantID) (*model.StockRecord, error) {
	query := `SELECT * FROM stock_records WHERE location_id = $1`
	args := []interface{}{locationID}

	if productID != nil {
		query += ` AND product_id = $2`
		args = append(args, *productID)
	} else if variantID != nil {
		query += ` AND variant_id = $2`
		args = append(args, *variantID)
	}

	var rec model.StockRecord
	err := r.DB.GetContext(ctx, &rec, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stock.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	var items []model.StockRecord
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.LocationID != "" {
		conditions = append(conditions, "location_id = :location_id")
		args["location_id"] = f.LocationID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.VariantID != "" {
		conditions = append(conditions, "variant_id = :variant_id")
		args["variant_id"] = f.VariantID
	}
	if f.LowStock {
		conditions = append(conditions, "quantity - reserved <= :low_stock_threshold")
		args["low_stock_threshold"] = f.LowStockThreshold
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_records" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	query := "SELECT * FROM stock_records" + whereClause + " ORDER BY updated_at DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

// UpdateWithEntry commits the new record state conditional on the version it
// was computed from and appends the ledger entry in the same transaction.
// Both rows land or neither does.
func (r *PGRepository) UpdateWithEntry(ctx context.Context, rec *model.StockRecord, expectedVersion int64, entry *model.LedgerEntry) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE stock_records
        SET quantity = $1, reserved = $2, defective = $3,
            version = version + 1, updated_at = $4
        WHERE id = $5 AND version = $6
    `, rec.Quantity, rec.Reserved, rec.Defective, rec.UpdatedAt, rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update stock record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return stock.ErrVersionConflict
	}
	rec.Version = expectedVersion + 1

	err = tx.QueryRowxContext(ctx, `
        INSERT INTO ledger_entries (
            id, stock_record_id, quantity_change, reserved_delta,
            defective_delta, reason, reference, actor, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING seq
    `, entry.ID, entry.StockRecordID, entry.QuantityChange, entry.ReservedDelta,
		entry.DefectiveDelta, entry.Reason, entry.Reference, entry.Actor, entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return tx.Commit()
}

// ListEntries pages oldest first. The continuation token is the seq of the
// last entry returned; an empty token starts from the beginning.
func (r *PGRepository) ListEntries(ctx context.Context, f *dto.HistoryFilters) ([]model.LedgerEntry, string, error) {
	afterSeq := int64(0)
	if f.PageToken != "" {
		seq, err := strconv.ParseInt(f.PageToken, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: malformed page token", stock.ErrInvalidInput)
		}
		afterSeq = seq
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `SELECT * FROM ledger_entries WHERE stock_record_id = $1 AND seq > $2`
	args := []interface{}{f.StockRecordID, afterSeq}

	if f.Reason != "" {
		query += ` AND reason = $3`
		args = append(args, f.Reason)
	}
	query += fmt.Sprintf(` ORDER BY seq ASC LIMIT %d`, pageSize+1)

	var entries []model.LedgerEntry
	if err := r.DB.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, "", err
	}

	nextToken := ""
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		nextToken = strconv.FormatInt(entries[len(entries)-1].Seq, 10)
	}
	return entries, nextToken, nil
}

func (r *PGRepository) SumByItem(ctx context.Context, productID *model.ProductID, variantID *model.VariantID) (*dto.ItemSummary, error) {
	query := `
        SELECT count(*) AS locations,
               COALESCE(SUM(quantity), 0) AS quantity,
               COALESCE(SUM(reserved), 0) AS reserved,
               COALESCE(SUM(defective), 0) AS defective
        FROM stock_records
    `
	var arg interface{}
	if productID != nil {
		query += ` WHERE product_id = $1`
		arg = *productID
	} else {
		query += ` WHERE variant_id = $1`
		arg = *variantID
	}

	summary := &dto.ItemSummary{ProductID: productID, VariantID: variantID}
	err := r.DB.QueryRowxContext(ctx, query, arg).Scan(
		&summary.Locations, &summary.Quantity, &summary.Reserved, &summary.Defective,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
