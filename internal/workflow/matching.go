package workflow

import (
	"sort"

	"maintenance-system/internal/entities"
)

// Pair - одно назначение, выбранное за прогон.
type Pair struct {
	Request    entities.Request
	Technician entities.Technician
}

// SortByWorkload упорядочивает техников по возрастанию загрузки, при равенстве по ID.
func SortByWorkload(techs []entities.Technician) []entities.Technician {
	sorted := make([]entities.Technician, len(techs))
	copy(sorted, techs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Workload != sorted[j].Workload {
			return sorted[i].Workload < sorted[j].Workload
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Queue - техники в порядке выдачи. Сортируется один раз при создании.
type Queue struct {
	techs []entities.Technician
}

func NewQueue(techs []entities.Technician) *Queue {
	return &Queue{techs: SortByWorkload(techs)}
}

func (q *Queue) Len() int { return len(q.techs) }

// Pop отдаёт техника с наименьшей загрузкой среди ещё не использованных.
func (q *Queue) Pop() (entities.Technician, bool) {
	if len(q.techs) == 0 {
		return entities.Technician{}, false
	}
	head := q.techs[0]
	q.techs = q.techs[1:]
	return head, true
}

// PushFront возвращает техника в голову очереди, если его назначение не состоялось не по его вине.
func (q *Queue) PushFront(t entities.Technician) {
	q.techs = append([]entities.Technician{t}, q.techs...)
}

// Match - жадный однопроходный подбор. Каждая заявка (в порядке, в котором их вернуло
// хранилище) забирает голову очереди. Пересортировки внутри прогона нет, поэтому никто
// не получает вторую заявку, пока каждый не получил первую. Прогон останавливается,
// когда кончается любой из списков.
func Match(requests []entities.Request, techs []entities.Technician) []Pair {
	queue := NewQueue(techs)
	pairs := make([]Pair, 0, min(len(requests), queue.Len()))
	for _, req := range requests {
		tech, ok := queue.Pop()
		if !ok {
			break
		}
		pairs = append(pairs, Pair{Request: req, Technician: tech})
	}
	return pairs
}
