package vec

import (
	"encoding/json"
	"testing"
)

func TestToChunkCoordsNegative(t *testing.T) {
	cases := []struct {
		world Vec3
		chunk Vec3
		local Vec3
	}{
		{Vec3{X: 0, Y: 64, Z: 0}, Vec3{X: 0, Z: 0}, Vec3{X: 0, Y: 64, Z: 0}},
		{Vec3{X: 15, Y: 0, Z: 15}, Vec3{X: 0, Z: 0}, Vec3{X: 15, Y: 0, Z: 15}},
		{Vec3{X: 16, Y: 0, Z: 16}, Vec3{X: 1, Z: 1}, Vec3{X: 0, Y: 0, Z: 0}},
		{Vec3{X: -1, Y: 0, Z: -1}, Vec3{X: -1, Z: -1}, Vec3{X: 15, Y: 0, Z: 15}},
		{Vec3{X: -16, Y: 0, Z: -17}, Vec3{X: -1, Z: -2}, Vec3{X: 0, Y: 0, Z: 15}},
	}

	for _, tc := range cases {
		if got := tc.world.ToChunkCoords(16); !got.Equals(tc.chunk) {
			t.Errorf("ToChunkCoords(%v): ожидалось %v, получено %v", tc.world, tc.chunk, got)
		}
		if got := tc.world.LocalInChunk(16); !got.Equals(tc.local) {
			t.Errorf("LocalInChunk(%v): ожидалось %v, получено %v", tc.world, tc.local, got)
		}
	}
}

func TestVec3TextRoundTrip(t *testing.T) {
	src := Vec3{X: -5, Y: 120, Z: 33}

	text, err := src.MarshalText()
	if err != nil {
		t.Fatalf("Ошибка сериализации: %v", err)
	}

	var restored Vec3
	if err := restored.UnmarshalText(text); err != nil {
		t.Fatalf("Ошибка десериализации: %v", err)
	}
	if !restored.Equals(src) {
		t.Errorf("Ожидалось %v, получено %v", src, restored)
	}

	if err := restored.UnmarshalText([]byte("мусор")); err == nil {
		t.Error("Мусор на входе не вызвал ошибку")
	}
}

func TestVec3AsMapKey(t *testing.T) {
	// Vec3 должен работать ключом JSON-карты
	m := map[Vec3]int{
		{X: 1, Y: 2, Z: 3}:    10,
		{X: -4, Y: 0, Z: -16}: 20,
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Ошибка сериализации карты: %v", err)
	}

	var restored map[Vec3]int
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Ошибка десериализации карты: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("Ожидались 2 записи, получено %d", len(restored))
	}
	if restored[Vec3{X: -4, Y: 0, Z: -16}] != 20 {
		t.Error("Запись с отрицательным ключом потеряна")
	}
}

func TestUnsetSentinel(t *testing.T) {
	unset := Unset()
	if !unset.IsUnset() {
		t.Error("Unset() не распознаётся как сторожевое значение")
	}
	if (Vec3F{X: 1, Y: 2, Z: 3}).IsUnset() {
		t.Error("Обычная позиция распознана как сторожевая")
	}

	// Сторожевое значение переживает JSON
	data, err := json.Marshal(unset)
	if err != nil {
		t.Fatalf("Ошибка сериализации сторожевого значения: %v", err)
	}

	var restored Vec3F
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Ошибка десериализации: %v", err)
	}
	if !restored.IsUnset() {
		t.Error("Сторожевое значение потеряно при сериализации")
	}
}

func TestVec3FToVec3Floors(t *testing.T) {
	v := Vec3F{X: 1.9, Y: -0.5, Z: -2.1}
	got := v.ToVec3()
	want := Vec3{X: 1, Y: -1, Z: -3}
	if !got.Equals(want) {
		t.Errorf("Ожидалось %v, получено %v", want, got)
	}
}

func TestHorizontalDistanceSquared(t *testing.T) {
	pos := Vec3F{X: 3, Y: 100, Z: 4}
	target := Vec3{X: 0, Y: 0, Z: 0}

	// Y не участвует в расстоянии
	if d := pos.HorizontalDistanceSquared(target); d != 25 {
		t.Errorf("Ожидалось 25, получено %f", d)
	}
}
