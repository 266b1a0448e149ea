package block

// Kind перечисляет материалы блоков
type Kind uint8

const (
	Air Kind = iota
	Stone
	Dirt
	Grass
	Plank
	Bedrock
	Water
	Sand
	Wood
	Leaf
	Snow
)

// String возвращает строковое представление материала
func (k Kind) String() string {
	switch k {
	case Air:
		return "air"
	case Stone:
		return "stone"
	case Dirt:
		return "dirt"
	case Grass:
		return "grass"
	case Plank:
		return "plank"
	case Bedrock:
		return "bedrock"
	case Water:
		return "water"
	case Sand:
		return "sand"
	case Wood:
		return "wood"
	case Leaf:
		return "leaf"
	case Snow:
		return "snow"
	default:
		return "unknown"
	}
}

// IsSolid проверяет, является ли блок твёрдым (не воздух и не вода)
func (k Kind) IsSolid() bool {
	return k != Air && k != Water
}

// IsAir проверяет, является ли блок воздухом
func (k Kind) IsAir() bool {
	return k == Air
}

// CanRotate проверяет, поддерживает ли материал ориентацию по граням.
// Пока вращается только дерево (текстура торца ствола).
func (k Kind) CanRotate() bool {
	return k == Wood
}

// Direction задаёт ориентацию блока по одной из шести граней
type Direction uint8

const (
	Left Direction = iota
	Right
	Bottom
	Top // Ориентация по умолчанию
	Back
	Front
)

// Opposite возвращает противоположную грань
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Bottom:
		return Top
	case Top:
		return Bottom
	case Back:
		return Front
	default:
		return Back
	}
}

// Block описывает одну ячейку воксельной сетки: материал плюс ориентация.
// Ориентация значима только для вращаемых материалов.
type Block struct {
	Kind      Kind      `json:"k"`
	Direction Direction `json:"d,omitempty"`
}

// Заготовки часто используемых блоков
var (
	AirBlock     = Block{Kind: Air, Direction: Top}
	StoneBlock   = Block{Kind: Stone, Direction: Top}
	DirtBlock    = Block{Kind: Dirt, Direction: Top}
	GrassBlock   = Block{Kind: Grass, Direction: Top}
	PlankBlock   = Block{Kind: Plank, Direction: Top}
	BedrockBlock = Block{Kind: Bedrock, Direction: Top}
	WaterBlock   = Block{Kind: Water, Direction: Top}
	SandBlock    = Block{Kind: Sand, Direction: Top}
	WoodBlock    = Block{Kind: Wood, Direction: Top}
	LeafBlock    = Block{Kind: Leaf, Direction: Top}
	SnowBlock    = Block{Kind: Snow, Direction: Top}
)
