package broker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/camuig/pie-watch/internal/portfolio"
)

// ListPies fetches the current pie listing.
func (c *Client) ListPies(ctx context.Context) ([]portfolio.Pie, error) {
	body, err := c.get(ctx, "/equity/pies")
	if err != nil {
		return nil, err
	}
	pies, err := ParsePieList(body)
	if err != nil {
		return nil, fmt.Errorf("list pies: %w", err)
	}
	return pies, nil
}

// FetchPieMeta fetches creation date and name of one pie.
func (c *Client) FetchPieMeta(ctx context.Context, id int64) (portfolio.Meta, error) {
	body, err := c.get(ctx, "/equity/pies/"+strconv.FormatInt(id, 10))
	if err != nil {
		return portfolio.Meta{}, err
	}
	meta, err := ParsePieMeta(body)
	if err != nil {
		return portfolio.Meta{}, fmt.Errorf("pie %d detail: %w", id, err)
	}
	return meta, nil
}
