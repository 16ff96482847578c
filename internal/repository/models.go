package repository

import (
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
)

// BatchModel is the persistence model for the batches table. The composite
// unique index on (date, number) is the store-level guard for the natural
// key; ReplaceMany keeps it satisfied by deleting before inserting.
type BatchModel struct {
	ID              uint        `gorm:"primaryKey;autoIncrement"`
	Status          bool        `gorm:"not null;default:false"`
	Assignment      string      `gorm:"type:varchar(255);not null"`
	Line            string      `gorm:"type:varchar(100);not null"`
	Shift           string      `gorm:"type:varchar(50);not null"`
	Squad           string      `gorm:"type:varchar(100);not null"`
	Number          int         `gorm:"not null;uniqueIndex:idx_batches_date_number"`
	Date            domain.Date `gorm:"not null;uniqueIndex:idx_batches_date_number"`
	Nomenclature    string      `gorm:"type:varchar(255);not null"`
	CodeKN          string      `gorm:"column:codekn;type:varchar(100);not null;index"`
	IdentificatorRC string      `gorm:"column:identificator_rc;type:varchar(100);not null"`
	StartTime       time.Time   `gorm:"not null"`
	EndTime         time.Time   `gorm:"not null"`
	ClosedAt        *time.Time
	Products        []ProductModel `gorm:"foreignKey:BatchID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// ProductModel is the persistence model for the products table.
type ProductModel struct {
	ID           uint        `gorm:"primaryKey;autoIncrement"`
	Code         string      `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_code"`
	BatchNumber  int         `gorm:"not null"`
	Date         domain.Date `gorm:"not null"`
	IsAggregated bool        `gorm:"not null;default:false"`
	AggregatedAt *time.Time
	BatchID      uint `gorm:"not null;index:idx_products_batch_id"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:              b.ID,
		Status:          b.Status,
		Assignment:      b.Assignment,
		Line:            b.Line,
		Shift:           b.Shift,
		Squad:           b.Squad,
		Number:          b.Number,
		Date:            b.Date,
		Nomenclature:    b.Nomenclature,
		CodeKN:          b.CodeKN,
		IdentificatorRC: b.IdentificatorRC,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		ClosedAt:        b.ClosedAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	products := make([]domain.Product, 0, len(m.Products))
	for i := range m.Products {
		products = append(products, *productModelToDomain(&m.Products[i]))
	}

	return &domain.Batch{
		ID:              m.ID,
		Status:          m.Status,
		Assignment:      m.Assignment,
		Line:            m.Line,
		Shift:           m.Shift,
		Squad:           m.Squad,
		Number:          m.Number,
		Date:            m.Date,
		Nomenclature:    m.Nomenclature,
		CodeKN:          m.CodeKN,
		IdentificatorRC: m.IdentificatorRC,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		ClosedAt:        m.ClosedAt,
		Products:        products,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func productModelFromDomain(p *domain.Product) *ProductModel {
	if p == nil {
		return nil
	}

	return &ProductModel{
		ID:           p.ID,
		Code:         p.Code,
		BatchNumber:  p.BatchNumber,
		Date:         p.Date,
		IsAggregated: p.IsAggregated,
		AggregatedAt: p.AggregatedAt,
		BatchID:      p.BatchID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func productModelToDomain(m *ProductModel) *domain.Product {
	if m == nil {
		return nil
	}

	return &domain.Product{
		ID:           m.ID,
		Code:         m.Code,
		BatchNumber:  m.BatchNumber,
		Date:         m.Date,
		IsAggregated: m.IsAggregated,
		AggregatedAt: m.AggregatedAt,
		BatchID:      m.BatchID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
