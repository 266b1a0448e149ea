package vec

import (
	"bytes"
	"encoding/json"
	"math"
)

// Vec3F представляет трехмерный вектор с плавающими координатами.
// Используется для позиций и скоростей игроков.
type Vec3F struct {
	X float64
	Y float64
	Z float64
}

// ZeroF нулевой вектор (скорость покоя)
var ZeroF = Vec3F{}

// Unset возвращает сторожевое значение «позиция не задана».
// Сервер отправляет его новому игроку без сохранённой позиции:
// клиент сам выбирает поверхность спавн-колонны.
func Unset() Vec3F {
	inf := math.Inf(1)
	return Vec3F{X: inf, Y: inf, Z: inf}
}

// IsUnset проверяет, является ли позиция сторожевым значением
func (v Vec3F) IsUnset() bool {
	return math.IsInf(v.X, 1)
}

// ToVec3 округляет позицию вниз до целочисленных координат блока
func (v Vec3F) ToVec3() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// HorizontalDistanceSquared возвращает квадрат расстояния до точки
// по горизонтали (Y игнорируется)
func (v Vec3F) HorizontalDistanceSquared(other Vec3) float64 {
	dx := v.X - float64(other.X)
	dz := v.Z - float64(other.Z)
	return dx*dx + dz*dz
}

// vec3fJSON — обычное представление без сторожевых значений
type vec3fJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var unsetJSON = []byte(`"unset"`)

// MarshalJSON кодирует сторожевую позицию строкой "unset":
// JSON не умеет представлять бесконечность числом
func (v Vec3F) MarshalJSON() ([]byte, error) {
	if v.IsUnset() {
		return unsetJSON, nil
	}
	return json.Marshal(vec3fJSON{X: v.X, Y: v.Y, Z: v.Z})
}

// UnmarshalJSON восстанавливает сторожевую позицию из строки "unset"
func (v *Vec3F) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), unsetJSON) {
		*v = Unset()
		return nil
	}
	var parsed vec3fJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*v = Vec3F{X: parsed.X, Y: parsed.Y, Z: parsed.Z}
	return nil
}
