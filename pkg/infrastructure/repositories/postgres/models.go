package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// materialRow is one ledger position; the check constraints back the
// 0 <= reserved <= on_hand invariant at the database level
type materialRow struct {
	ID               string    `gorm:"column:material_id;primaryKey;type:varchar(64)"`
	Name             string    `gorm:"column:name;type:varchar(200);not null"`
	ColorTag         string    `gorm:"column:color_tag;type:varchar(32)"`
	OnHand           int64     `gorm:"column:on_hand;not null;check:chk_materials_on_hand,on_hand >= 0"`
	Reserved         int64     `gorm:"column:reserved;not null;default:0;check:chk_materials_reserved,reserved >= 0 AND reserved <= on_hand"`
	UnitLabel        string    `gorm:"column:unit_label;type:varchar(32)"`
	ReorderThreshold int64     `gorm:"column:reorder_threshold;not null;default:0"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (materialRow) TableName() string { return "materials" }

type productRow struct {
	ID        string          `gorm:"column:product_id;primaryKey;type:varchar(64)"`
	Name      string          `gorm:"column:name;type:varchar(200);not null"`
	SKU       string          `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_products_sku"`
	ColorTag  string          `gorm:"column:color_tag;type:varchar(32)"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (productRow) TableName() string { return "products" }

type bomEdgeRow struct {
	ProductID   string `gorm:"column:product_id;primaryKey;type:varchar(64)"`
	Kind        string `gorm:"column:kind;primaryKey;type:varchar(16)"`
	ComponentID string `gorm:"column:component_id;primaryKey;type:varchar(64);index:idx_bom_edges_component"`
	QtyPer      int64  `gorm:"column:qty_per;not null;check:chk_bom_edges_qty,qty_per > 0"`
	Position    int    `gorm:"column:position;not null"`
}

func (bomEdgeRow) TableName() string { return "bom_edges" }

type orderRow struct {
	ID               string     `gorm:"column:order_id;primaryKey;type:varchar(64)"`
	Customer         string     `gorm:"column:customer;type:varchar(200);not null"`
	Email            string     `gorm:"column:email;type:varchar(200)"`
	ShippingAddress  string     `gorm:"column:shipping_address;type:text"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null"`
	ExpectedDelivery *time.Time `gorm:"column:expected_delivery"`
	TrackingNumber   string     `gorm:"column:tracking_number;type:varchar(100)"`
}

func (orderRow) TableName() string { return "orders" }

type orderLineRow struct {
	OrderID   string          `gorm:"column:order_id;primaryKey;type:varchar(64)"`
	LineNo    int             `gorm:"column:line_no;primaryKey"`
	TargetID  string          `gorm:"column:target_id;type:varchar(64);not null"`
	Kind      string          `gorm:"column:kind;type:varchar(16);not null"`
	Quantity  int64           `gorm:"column:quantity;not null;check:chk_order_lines_qty,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

func (orderLineRow) TableName() string { return "order_lines" }

type reservationRow struct {
	OrderID    string    `gorm:"column:order_id;primaryKey;type:varchar(64)"`
	MaterialID string    `gorm:"column:material_id;primaryKey;type:varchar(64);index:idx_reservations_material"`
	Units      int64     `gorm:"column:units;not null;check:chk_reservations_units,units > 0"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (reservationRow) TableName() string { return "reservations" }

func materialFromEntity(m *entities.Material) materialRow {
	return materialRow{
		ID:               string(m.ID),
		Name:             m.Name,
		ColorTag:         m.ColorTag,
		OnHand:           int64(m.OnHand),
		Reserved:         int64(m.Reserved),
		UnitLabel:        m.UnitLabel,
		ReorderThreshold: int64(m.ReorderThreshold),
		UpdatedAt:        m.UpdatedAt,
	}
}

func (r materialRow) toEntity() *entities.Material {
	return &entities.Material{
		ID:               entities.MaterialID(r.ID),
		Name:             r.Name,
		ColorTag:         r.ColorTag,
		OnHand:           entities.Quantity(r.OnHand),
		Reserved:         entities.Quantity(r.Reserved),
		UnitLabel:        r.UnitLabel,
		ReorderThreshold: entities.Quantity(r.ReorderThreshold),
		UpdatedAt:        r.UpdatedAt,
	}
}

func productFromEntity(p *entities.Product) (productRow, []bomEdgeRow) {
	row := productRow{
		ID:        string(p.ID),
		Name:      p.Name,
		SKU:       p.SKU,
		ColorTag:  p.ColorTag,
		Price:     p.Price,
		UpdatedAt: p.UpdatedAt,
	}
	edges := make([]bomEdgeRow, len(p.BOM))
	for i, line := range p.BOM {
		edges[i] = bomEdgeRow{
			ProductID:   string(p.ID),
			Kind:        line.Kind.String(),
			ComponentID: line.ComponentID,
			QtyPer:      int64(line.QtyPer),
			Position:    i,
		}
	}
	return row, edges
}

func (r productRow) toEntity(edges []bomEdgeRow) (*entities.Product, error) {
	bom := make([]entities.BOMLine, len(edges))
	for i, e := range edges {
		kind, err := entities.ParseTargetKind(e.Kind)
		if err != nil {
			return nil, err
		}
		bom[i] = entities.BOMLine{ComponentID: e.ComponentID, Kind: kind, QtyPer: entities.Quantity(e.QtyPer)}
	}
	return &entities.Product{
		ID:        entities.ProductID(r.ID),
		Name:      r.Name,
		SKU:       r.SKU,
		ColorTag:  r.ColorTag,
		Price:     r.Price,
		BOM:       bom,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func orderFromEntity(o *entities.Order) (orderRow, []orderLineRow) {
	row := orderRow{
		ID:               o.ID,
		Customer:         o.Customer,
		Email:            o.Email,
		ShippingAddress:  o.ShippingAddress,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		ExpectedDelivery: o.ExpectedDelivery,
		TrackingNumber:   o.TrackingNumber,
	}
	lines := make([]orderLineRow, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineRow{
			OrderID:   o.ID,
			LineNo:    i + 1,
			TargetID:  l.TargetID,
			Kind:      l.Kind.String(),
			Quantity:  int64(l.Quantity),
			UnitPrice: l.UnitPrice,
		}
	}
	return row, lines
}

func (r orderRow) toEntity(lines []orderLineRow) (*entities.Order, error) {
	status, err := entities.ParseOrderStatus(r.Status)
	if err != nil {
		return nil, err
	}
	out := make([]entities.OrderLine, len(lines))
	for i, l := range lines {
		kind, err := entities.ParseTargetKind(l.Kind)
		if err != nil {
			return nil, err
		}
		out[i] = entities.OrderLine{
			TargetID:  l.TargetID,
			Kind:      kind,
			Quantity:  entities.Quantity(l.Quantity),
			UnitPrice: l.UnitPrice,
		}
	}
	return &entities.Order{
		ID:               r.ID,
		Customer:         r.Customer,
		Email:            r.Email,
		ShippingAddress:  r.ShippingAddress,
		Status:           status,
		Lines:            out,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ExpectedDelivery: r.ExpectedDelivery,
		TrackingNumber:   r.TrackingNumber,
	}, nil
}

// reservationsFromRows groups rows by order, preserving row order
func reservationsFromRows(rows []reservationRow) []*entities.Reservation {
	var out []*entities.Reservation
	index := make(map[string]*entities.Reservation)
	for _, row := range rows {
		r, ok := index[row.OrderID]
		if !ok {
			r = &entities.Reservation{
				OrderID:   row.OrderID,
				Units:     make(map[entities.MaterialID]entities.Quantity),
				CreatedAt: row.CreatedAt,
			}
			index[row.OrderID] = r
			out = append(out, r)
		}
		r.Units[entities.MaterialID(row.MaterialID)] = entities.Quantity(row.Units)
	}
	return out
}
