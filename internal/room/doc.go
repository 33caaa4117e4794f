// Package room 實作即時協作練習房間的協調器（Coordinator）
//
// 系統設計問題：
//
//	多位使用者同時開啟同一道題目，導師（mentor）與學生（student）
//	需要即時看到彼此的程式碼與在線人數。
//
// 核心挑戰：
//  1. 共享狀態：房間表被所有連線同時讀寫
//  2. 順序保證：同一房間的事件必須以相同順序送達每個成員
//  3. 慢客戶端：單一連線卡住不能拖慢整個房間
//
// 設計方案：
//
//	Coordinator（全域 RWMutex：rooms + conn→room 索引）
//	  └─ Room（成員鎖 mu + outbox）
//	       └─ member → Sender（非阻塞 Send，由傳輸層實作有界佇列）
//
// 成員變更與事件排入 outbox 在 Room.mu 內一起完成，所以 outbox 的順序
// 即為事件的接受順序。釋放所有鎖之後由單一 drainer 依序送出，
// 同一房間的所有接收者看到一致的順序，慢的房間也不會卡住其他房間。
// 離開房間時關閉成員資格，之後原房間的事件不會再送到該連線。
//
// 角色規則：
//   - 空房間的第一位加入者成為導師，其後皆為學生
//   - 人數（count）只計算學生，不含導師
//   - 導師離開只清空導師位置，不會自動遞補
//   - 房間清空後即刪除
package room
