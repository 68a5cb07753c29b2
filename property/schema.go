package property

import "github.com/liamcoop/underwriting/filterquery"

// Table is the SQL table holding properties.
const Table = "properties"

// FilterSchema is the allow-list of property fields that may be filtered, sorted or projected.
func FilterSchema() filterquery.Schema {
	return filterquery.Schema{
		IDField: "id",
		Fields: map[string]filterquery.Field{
			"id":          {Type: filterquery.Text, Column: "id", Selectable: true, Sortable: true},
			"title":       {Type: filterquery.Text, Column: "title", Filterable: true, Sortable: true, Selectable: true},
			"price":       {Type: filterquery.Number, Column: "price", Filterable: true, Sortable: true, Selectable: true},
			"beds":        {Type: filterquery.Number, Column: "beds", Filterable: true, Sortable: true, Selectable: true},
			"baths":       {Type: filterquery.Number, Column: "baths", Filterable: true, Sortable: true, Selectable: true},
			"sqft":        {Type: filterquery.Number, Column: "sqft", Filterable: true, Sortable: true, Selectable: true},
			"status":      {Type: filterquery.Text, Column: "status", Filterable: true, Sortable: true, Selectable: true},
			"asset_class": {Type: filterquery.Text, Column: "asset_class", Filterable: true, Sortable: true, Selectable: true},
			"category":    {Type: filterquery.Text, Column: "category", Filterable: true, Selectable: true},
			"address":     {Type: filterquery.Text, Column: "location->>'address'", Selectable: true},
			"created_at":  {Type: filterquery.Time, Column: "created_at", Sortable: true, Selectable: true},
			"updated_at":  {Type: filterquery.Time, Column: "updated_at", Sortable: true, Selectable: true},
		},
		SearchFields: []string{"title", "address"},
		DefaultSort:  []filterquery.SortKey{{Field: "created_at", Desc: true}},
	}
}
