package world

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Параметры биомов: границы высот и экспоненты сглаживания.
// Три полосы (океан / равнины / горы) с плавной интерполяцией между
// ними по значению биомного шума.
const (
	oceanMinHeight    = float64(SeaLevel) - 40.0
	oceanMaxHeight    = float64(SeaLevel) + 5.0
	oceanFlattening   = 4.0
	plainsMinHeight   = float64(SeaLevel) + 10.0
	plainsMaxHeight   = float64(SeaLevel) + 40.0
	plainsFlattening  = 3.0
	mountainMinHeight = float64(SeaLevel) + 50.0
	mountainMaxHeight = float64(SeaLevel) + 180.0
	mountainFlatten   = 1.5

	oceanPlainsThreshold   = 0.4
	plainsMountainThresh   = 0.6
	ferrisSpawnThreshold   = 0.85
	treeSpawnThreshold     = 0.85
	treeMaxSurfaceHeight   = 90
	snowLine               = 165
	highStoneLine          = 140
)

// Масштабы шумов
const (
	terrainNoiseScale = 0.008
	biomeNoiseScale   = 0.002
	objectNoiseScale  = 0.05
)

// Generator детерминированно генерирует ландшафт по сиду мира.
// Один и тот же сид на сервере и клиенте даёт идентичные чанки,
// поэтому по сети передаются только правки.
type Generator struct {
	seed    uint32
	terrain *perlin.Perlin
	biome   *perlin.Perlin
	tree    *perlin.Perlin
	ferris  *perlin.Perlin
}

// NewGenerator создаёт генератор для указанного сида
func NewGenerator(seed uint32) *Generator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &Generator{
		seed:    seed,
		terrain: perlin.NewPerlin(alpha, beta, n, int64(seed)),
		biome:   perlin.NewPerlin(alpha, beta, n, int64(seed)+1),
		tree:    perlin.NewPerlin(alpha, beta, n, int64(seed)+2),
		ferris:  perlin.NewPerlin(alpha, beta, n, int64(seed)+3),
	}
}

// Seed возвращает сид мира
func (g *Generator) Seed() uint32 {
	return g.seed
}

// noise01 возвращает значение шума, приведённое к диапазону [0, 1]
func noise01(p *perlin.Perlin, x, z, scale float64) float64 {
	n := p.Noise2D(x*scale, z*scale)
	n = (n + 1.0) / 2.0
	return math.Min(1.0, math.Max(0.0, n))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// TerrainAt возвращает высоту поверхности и биомное значение столба.
// Биомное значение < 0.4 — океан, < 0.6 — равнины, выше — горы.
func (g *Generator) TerrainAt(x, z int) (int, float64) {
	fx, fz := float64(x), float64(z)
	terrainNoise := noise01(g.terrain, fx, fz, terrainNoiseScale)
	biomeNoise := noise01(g.biome, fx, fz, biomeNoiseScale)

	var minHeight, maxHeight, flattening float64

	switch {
	case biomeNoise < oceanPlainsThreshold:
		t := biomeNoise / oceanPlainsThreshold
		minHeight = lerp(oceanMinHeight, plainsMinHeight, t)
		maxHeight = lerp(oceanMaxHeight, plainsMaxHeight, t)
		flattening = lerp(oceanFlattening, plainsFlattening, t)
	case biomeNoise < plainsMountainThresh:
		t := (biomeNoise - oceanPlainsThreshold) / (plainsMountainThresh - oceanPlainsThreshold)
		minHeight = lerp(plainsMinHeight, mountainMinHeight, t)
		maxHeight = lerp(plainsMaxHeight, mountainMaxHeight, t)
		flattening = lerp(plainsFlattening, mountainFlatten, t)
	default:
		minHeight = mountainMinHeight
		maxHeight = mountainMaxHeight
		flattening = mountainFlatten
	}

	height := minHeight + math.Pow(terrainNoise, flattening)*(maxHeight-minHeight)
	return int(height), biomeNoise
}

// BlockAt возвращает блок ландшафта для мировой позиции при известной
// высоте поверхности столба
func (g *Generator) BlockAt(pos vec.Vec3, maxY int) block.Block {
	y := pos.Y
	switch {
	case y == 0:
		return block.BedrockBlock
	case y < maxY:
		switch {
		case y > snowLine:
			return block.SnowBlock
		case y > highStoneLine:
			return block.StoneBlock
		case y == maxY-1:
			return block.GrassBlock
		case y >= maxY-4:
			return block.DirtBlock
		default:
			return block.StoneBlock
		}
	case y < SeaLevel:
		return block.WaterBlock
	default:
		return block.AirBlock
	}
}

// treeObject — трафарет дерева: слои снизу вверх, каждый слой 5x5
// блоков (строки по Z, столбцы по X). Ствол из дерева, крона из листвы.
var treeObject = func() [][5][5]block.Block {
	o := block.AirBlock
	w := block.WoodBlock
	l := block.LeafBlock

	trunk := [5][5]block.Block{
		{o, o, o, o, o},
		{o, o, o, o, o},
		{o, o, w, o, o},
		{o, o, o, o, o},
		{o, o, o, o, o},
	}
	canopyWide := [5][5]block.Block{
		{o, l, l, l, o},
		{l, l, l, l, l},
		{l, l, w, l, l},
		{l, l, l, l, l},
		{o, l, l, l, o},
	}
	canopyNarrow := [5][5]block.Block{
		{o, o, o, o, o},
		{o, l, l, l, o},
		{o, l, l, l, o},
		{o, l, l, l, o},
		{o, o, o, o, o},
	}
	crown := [5][5]block.Block{
		{o, o, o, o, o},
		{o, o, l, o, o},
		{o, l, l, l, o},
		{o, o, l, o, o},
		{o, o, o, o, o},
	}

	return [][5][5]block.Block{trunk, trunk, trunk, canopyWide, canopyWide, canopyNarrow, crown}
}()

// GenerateChunk генерирует чанк ландшафта по его координатам.
// Результат детерминирован: правки SavedChunk накладываются поверх
// вызывающей стороной через ApplyTo.
func (g *Generator) GenerateChunk(coords vec.Vec3) *Chunk {
	chunk := NewChunk(coords)

	// Детерминированный генератор для углов поворота сущностей
	rng := rand.New(rand.NewSource(int64(g.seed) + int64(coords.X)*31 + int64(coords.Z)*17))

	baseX := coords.X * ChunkSize
	baseZ := coords.Z * ChunkSize

	for relZ := 0; relZ < ChunkSize; relZ++ {
		for relX := 0; relX < ChunkSize; relX++ {
			worldX := baseX + relX
			worldZ := baseZ + relZ

			maxY, biome := g.TerrainAt(worldX, worldZ)

			for y := 0; y < ChunkHeight; y++ {
				local := vec.Vec3{X: relX, Y: y, Z: relZ}
				chunk.Blocks[BlockIndex(local)] = g.BlockAt(vec.Vec3{X: worldX, Y: y, Z: worldZ}, maxY)
			}

			// Декоративный Ferris на суше в низких биомах
			if maxY > SeaLevel && biome < oceanPlainsThreshold &&
				noise01(g.ferris, float64(worldX), float64(worldZ), objectNoiseScale) > ferrisSpawnThreshold {
				chunk.Entities = append(chunk.Entities, Entity{
					Kind: EntityFerris,
					Pos:  vec.Vec3F{X: float64(worldX), Y: float64(maxY), Z: float64(worldZ)},
					Rot:  float64(rng.Intn(360)),
				})
			}

			// Деревья на равнинах: трафарет ставится на поверхность,
			// части за пределами чанка отбрасываются
			treeNoise := noise01(g.tree, float64(worldX), float64(worldZ), objectNoiseScale)
			if treeNoise > treeSpawnThreshold && maxY < treeMaxSurfaceHeight && maxY > SeaLevel+2 {
				g.stampTree(chunk, relX, relZ)
			}
		}
	}

	return chunk
}

// stampTree накладывает трафарет дерева со смещением от угла чанка.
// Высота каждого столба трафарета привязывается к рельефу под ним.
func (g *Generator) stampTree(chunk *Chunk, relX, relZ int) {
	for y, layer := range treeObject {
		for z, row := range layer {
			for x, b := range row {
				if b.Kind.IsAir() {
					continue
				}

				local := vec.Vec3{X: relX + x - 2, Y: y, Z: relZ + z - 2}
				worldX := chunk.Coords.X*ChunkSize + local.X
				worldZ := chunk.Coords.Z*ChunkSize + local.Z
				columnY, _ := g.TerrainAt(worldX, worldZ)
				local.Y += columnY

				if InChunkBounds(local) {
					chunk.Blocks[BlockIndex(local)] = b
				}
			}
		}
	}
}
