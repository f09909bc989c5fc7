package model

// CartLine is one item in a session cart. Display fields are copied from the
// catalog at add time.
type CartLine struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Price    Money  `json:"price"`
	Image    string `json:"image,omitempty"`
	Scent    string `json:"scent,omitempty"`
	Quantity int    `json:"quantity"`
}

func (l CartLine) LineTotal() Money {
	return l.Price.Times(l.Quantity)
}

// Cart holds at most one line per item id, in insertion order.
// A cart belongs to a single session and is not safe for concurrent use.
type Cart struct {
	Items []CartLine `json:"items"`
}

func NewCart() *Cart {
	return &Cart{Items: []CartLine{}}
}

func (c *Cart) indexOf(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddItem increments an existing line or appends a new one.
// A quantity below 1 adds a single unit.
func (c *Cart) AddItem(item CatalogItem, quantity int) CartLine {
	if quantity < 1 {
		quantity = 1
	}
	if i := c.indexOf(item.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		return c.Items[i]
	}
	line := CartLine{
		ItemID:   item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Image:    item.Image,
		Scent:    item.Scent,
		Quantity: quantity,
	}
	c.Items = append(c.Items, line)
	return line
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
// Unknown ids are ignored. Reports whether a line was found.
func (c *Cart) UpdateQuantity(itemID string, quantity int) bool {
	i := c.indexOf(itemID)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = quantity
	return true
}

// RemoveItem deletes the line; unknown ids are ignored
func (c *Cart) RemoveItem(itemID string) bool {
	return c.UpdateQuantity(itemID, 0)
}

func (c *Cart) Line(itemID string) (CartLine, bool) {
	if i := c.indexOf(itemID); i >= 0 {
		return c.Items[i], true
	}
	return CartLine{}, false
}

// Count is the sum of line quantities
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// Total is Σ price × quantity rounded to 2 places
func (c *Cart) Total() Money {
	total := ZeroMoney()
	for _, l := range c.Items {
		total = total.Add(l.LineTotal())
	}
	return total
}

func (c *Cart) Clear() {
	c.Items = []CartLine{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Lines returns a copy of the cart lines
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.Items))
	copy(out, c.Items)
	return out
}
