package domain

// weightByFormat задаёт производственную стоимость форматов. Многослайдовые
// композиции и видео требуют монтажа, остальное собирается из готового кадра.
var weightByFormat = map[AssetFormat]PostWeight{
	FormatCarousel:    WeightHeavy,
	FormatReel:        WeightHeavy,
	FormatLongVideo:   WeightHeavy,
	FormatSingleImage: WeightLight,
	FormatStory:       WeightLight,
	FormatText:        WeightLight,
}

// ClassifyWeight определяет вес поста по формату поста либо материала.
// Функция тотальна: при отсутствии сигналов возвращает light.
func ClassifyWeight(post Post, asset Asset) PostWeight {
	format := post.Format
	if format == "" {
		format = asset.Format
	}
	if weight, ok := weightByFormat[format]; ok {
		return weight
	}
	return WeightLight
}
