package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется для мировых координат блоков и координат чанков
// (у координат чанка Y всегда 0 — чанки занимают всю высоту столба).
// В JSON кодируется текстом "x,y,z", что позволяет использовать его
// ключом в map.
type Vec3 struct {
	X int
	Y int
	Z int
}

// String возвращает представление вида "x,y,z"
func (v Vec3) String() string {
	return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z)
}

// MarshalText реализует encoding.TextMarshaler
func (v Vec3) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (v *Vec3) UnmarshalText(text []byte) error {
	var parsed Vec3
	if _, err := fmt.Sscanf(string(text), "%d,%d,%d", &parsed.X, &parsed.Y, &parsed.Z); err != nil {
		return fmt.Errorf("некорректные координаты %q: %w", string(text), err)
	}
	*v = parsed
	return nil
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// WithY возвращает копию вектора с заменённой координатой Y
func (v Vec3) WithY(y int) Vec3 {
	return Vec3{X: v.X, Y: y, Z: v.Z}
}

// DistanceSquared возвращает квадрат расстояния до другого вектора.
// Квадрат используется вместо корня — сравнение с порогом не требует math.Sqrt.
func (v Vec3) DistanceSquared(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// floorDiv выполняет целочисленное деление с округлением вниз (как div_euclid)
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorMod возвращает неотрицательный остаток от деления (как rem_euclid)
func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// ToChunkCoords преобразует мировые координаты блока в координаты чанка.
// Чанки адресуются только по X/Z; Y координаты чанка всегда 0.
func (v Vec3) ToChunkCoords(chunkSize int) Vec3 {
	return Vec3{X: floorDiv(v.X, chunkSize), Y: 0, Z: floorDiv(v.Z, chunkSize)}
}

// LocalInChunk возвращает локальные координаты блока внутри его чанка
func (v Vec3) LocalInChunk(chunkSize int) Vec3 {
	return Vec3{X: floorMod(v.X, chunkSize), Y: v.Y, Z: floorMod(v.Z, chunkSize)}
}
