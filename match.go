package match

// CalculateDepthChange maps a book event to the depth delta it causes.
// Note: for match events the event side is the taker's, so the change
// applies to the opposite (maker) side, where the liquidity left the book.
func CalculateDepthChange(ev *BookEvent) DepthChange {
	switch ev.Type {
	case EventOpen:
		return DepthChange{
			Side:     ev.Side,
			Price:    ev.Price,
			SizeDiff: ev.Size,
		}
	case EventCancel:
		return DepthChange{
			Side:     ev.Side,
			Price:    ev.Price,
			SizeDiff: ev.Size.Neg(),
		}
	case EventMatch:
		return DepthChange{
			Side:     ev.Side.Opposite(),
			Price:    ev.Price,
			SizeDiff: ev.Size.Neg(),
		}
	}

	return DepthChange{}
}
