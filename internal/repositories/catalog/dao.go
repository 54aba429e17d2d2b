package catalog

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type PropertyRow struct {
	ID                  sql.NullString                  `db:"id"`
	Data                database.JSONB[json.RawMessage] `db:"data"`
	AssignedEmployeeID  sql.NullString                  `db:"assigned_employee_id"`
	CreatedByEmployeeID sql.NullString                  `db:"created_by_employee_id"`
	PrimaryAgentID      sql.NullString                  `db:"primary_agent_id"`
	IsDeleted           sql.NullBool                    `db:"is_deleted"`
	DeletedBy           sql.NullString                  `db:"deleted_by"`
	DeletedAt           sql.NullTime                    `db:"deleted_at"`
	CreatedAt           sql.NullTime                    `db:"created_at"`
	UpdatedAt           sql.NullTime                    `db:"updated_at"`
}

const propertyTable = "properties"

var propertyStruct = database.NewStruct(new(PropertyRow))

func FromProperty(property models.Property) *PropertyRow {
	row := &PropertyRow{
		ID:        sql.NullString{String: property.ID, Valid: property.ID != ""},
		Data:      database.JSONB[json.RawMessage]{Data: property.Data},
		IsDeleted: sql.NullBool{Bool: property.IsDeleted, Valid: true},
		CreatedAt: sql.NullTime{Time: property.CreatedAt, Valid: property.CreatedAt != time.Time{}},
		UpdatedAt: sql.NullTime{Time: property.UpdatedAt, Valid: property.UpdatedAt != time.Time{}},
	}
	if property.AssignedEmployeeID != nil {
		row.AssignedEmployeeID = sql.NullString{String: *property.AssignedEmployeeID, Valid: true}
	}
	if property.CreatedByEmployeeID != nil {
		row.CreatedByEmployeeID = sql.NullString{String: *property.CreatedByEmployeeID, Valid: true}
	}
	if property.PrimaryAgentID != nil {
		row.PrimaryAgentID = sql.NullString{String: *property.PrimaryAgentID, Valid: true}
	}
	if property.DeletedBy != nil {
		row.DeletedBy = sql.NullString{String: *property.DeletedBy, Valid: true}
	}
	if property.DeletedAt != nil {
		row.DeletedAt = sql.NullTime{Time: *property.DeletedAt, Valid: true}
	}
	return row
}

func ToProperty(row *PropertyRow) models.Property {
	property := models.Property{
		ID:        row.ID.String,
		Data:      row.Data.Data,
		IsDeleted: row.IsDeleted.Bool,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.AssignedEmployeeID.Valid {
		property.AssignedEmployeeID = &row.AssignedEmployeeID.String
	}
	if row.CreatedByEmployeeID.Valid {
		property.CreatedByEmployeeID = &row.CreatedByEmployeeID.String
	}
	if row.PrimaryAgentID.Valid {
		property.PrimaryAgentID = &row.PrimaryAgentID.String
	}
	if row.DeletedBy.Valid {
		property.DeletedBy = &row.DeletedBy.String
	}
	if row.DeletedAt.Valid {
		property.DeletedAt = &row.DeletedAt.Time
	}
	return property
}

type BannerRow struct {
	ID        sql.NullString                  `db:"id"`
	Data      database.JSONB[json.RawMessage] `db:"data"`
	IsDeleted sql.NullBool                    `db:"is_deleted"`
	DeletedBy sql.NullString                  `db:"deleted_by"`
	DeletedAt sql.NullTime                    `db:"deleted_at"`
	CreatedAt sql.NullTime                    `db:"created_at"`
	UpdatedAt sql.NullTime                    `db:"updated_at"`
}

const bannerTable = "banners"

var bannerStruct = database.NewStruct(new(BannerRow))

func FromBanner(banner models.Banner) *BannerRow {
	row := &BannerRow{
		ID:        sql.NullString{String: banner.ID, Valid: banner.ID != ""},
		Data:      database.JSONB[json.RawMessage]{Data: banner.Data},
		IsDeleted: sql.NullBool{Bool: banner.IsDeleted, Valid: true},
		CreatedAt: sql.NullTime{Time: banner.CreatedAt, Valid: banner.CreatedAt != time.Time{}},
		UpdatedAt: sql.NullTime{Time: banner.UpdatedAt, Valid: banner.UpdatedAt != time.Time{}},
	}
	if banner.DeletedBy != nil {
		row.DeletedBy = sql.NullString{String: *banner.DeletedBy, Valid: true}
	}
	if banner.DeletedAt != nil {
		row.DeletedAt = sql.NullTime{Time: *banner.DeletedAt, Valid: true}
	}
	return row
}

func ToBanner(row *BannerRow) models.Banner {
	banner := models.Banner{
		ID:        row.ID.String,
		Data:      row.Data.Data,
		IsDeleted: row.IsDeleted.Bool,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.DeletedBy.Valid {
		banner.DeletedBy = &row.DeletedBy.String
	}
	if row.DeletedAt.Valid {
		banner.DeletedAt = &row.DeletedAt.Time
	}
	return banner
}
