package engine

const (
	BoardRows = 6
	BoardCols = 7
	WinLength = 4
)

// Axis is a scan direction through the last placed cell.
type Axis struct {
	Name string
	DRow int
	DCol int
}

// ScanOrder is fixed: the first axis yielding a line of WinLength wins.
var ScanOrder = []Axis{
	{Name: "horizontal", DRow: 0, DCol: 1},
	{Name: "vertical", DRow: 1, DCol: 0},
	{Name: "diagonal", DRow: 1, DCol: 1},
	{Name: "anti-diagonal", DRow: 1, DCol: -1},
}

type Cell struct {
	Row int
	Col int
}

// Board cells hold 0 for empty, otherwise the 1-based seat of the player.
type Board [BoardRows][BoardCols]int

func (b *Board) inBounds(row, col int) bool {
	return row >= 0 && row < BoardRows && col >= 0 && col < BoardCols
}

// Drop returns the row a piece dropped in col lands on.
func (b *Board) Drop(col int) (int, bool) {
	if col < 0 || col >= BoardCols {
		return 0, false
	}
	for row := BoardRows - 1; row >= 0; row-- {
		if b[row][col] == 0 {
			return row, true
		}
	}
	return 0, false
}

func (b *Board) Full() bool {
	for col := 0; col < BoardCols; col++ {
		if b[0][col] == 0 {
			return false
		}
	}
	return true
}

// WinningLine scans ScanOrder from (row, col) and returns the first line of at
// least WinLength cells owned by the piece at that cell. Each direction stops
// at the board edge or the first cell not owned by the same seat.
func (b *Board) WinningLine(row, col int) (Axis, []Cell, bool) {
	if !b.inBounds(row, col) || b[row][col] == 0 {
		return Axis{}, nil, false
	}
	seat := b[row][col]
	for _, ax := range ScanOrder {
		line := []Cell{{Row: row, Col: col}}
		for _, sign := range [2]int{-1, 1} {
			r, c := row+sign*ax.DRow, col+sign*ax.DCol
			for b.inBounds(r, c) && b[r][c] == seat {
				if sign < 0 {
					line = append([]Cell{{Row: r, Col: c}}, line...)
				} else {
					line = append(line, Cell{Row: r, Col: c})
				}
				r, c = r+sign*ax.DRow, c+sign*ax.DCol
			}
		}
		if len(line) >= WinLength {
			return ax, line, true
		}
	}
	return Axis{}, nil, false
}

func nextTurn(turn int) int { return 1 - turn }
