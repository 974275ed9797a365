package database

import "strings"

// SearchObjects finds objects matching the given model, label, and/or owner
// filters (AND logic, label is case-insensitive).
func SearchObjects(model, label, owner string, limit, offset int) ([]DigitalObject, int64, error) {
	q := DB.Model(&DigitalObject{})

	if m := strings.TrimSpace(model); m != "" {
		q = q.Where("object_model = ?", m)
	}
	if l := strings.TrimSpace(label); l != "" {
		q = q.Where("label ILIKE ?", "%"+l+"%")
	}
	if o := strings.TrimSpace(owner); o != "" {
		q = q.Where("owner_id = ?", o)
	}

	var total int64
	q.Count(&total)

	var objects []DigitalObject
	if err := q.
		Order("pid").
		Limit(limit).
		Offset(offset).
		Find(&objects).Error; err != nil {
		return nil, 0, err
	}

	return objects, total, nil
}
